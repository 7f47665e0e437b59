package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// TradeArchiveStore is the slice of the trade ledger the archiver needs:
// read access to the aged window and the delete that follows a verified
// upload.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver. An archive run serializes the
// aged trades to JSONL, uploads the object, reads it back to verify the
// line count, and only then deletes the rows from the ledger. A failure at
// any step leaves the ledger intact; re-running produces the same object
// key, so a crashed run is safely repeatable.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	trades TradeArchiveStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		trades: trades,
		audit:  audit,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveTrades archives all trades with a timestamp strictly before the
// cutoff to archive/trades/YYYY-MM.jsonl and deletes them from the ledger
// once the uploaded object verifies. The archival event is recorded in the
// audit log and the count of archived rows is returned.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	if err := a.verify(ctx, path, len(trades)); err != nil {
		return 0, err
	}

	deleted, err := a.trades.DeleteBefore(ctx, before)
	if err != nil {
		// The archive object exists; the rows survive until the next run.
		return 0, fmt.Errorf("s3blob: archive trades delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.trades", map[string]any{
		"path":    path,
		"count":   len(trades),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}

	return deleted, nil
}

// verify reads the uploaded object back and checks that it holds exactly
// the expected number of JSONL lines. Nothing is deleted until this passes.
func (a *ArchiveImpl) verify(ctx context.Context, path string, want int) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: verify %s: %w", path, err)
	}
	defer body.Close()

	var got int
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			got++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("s3blob: verify read %s: %w", path, err)
	}

	if got != want {
		return fmt.Errorf("s3blob: verify %s: object holds %d records, expected %d", path, got, want)
	}
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
