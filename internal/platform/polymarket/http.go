package polymarket

import (
	"fmt"
	"net/http"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// checkHTTPStatus maps non-2xx responses to domain errors. Server-side and
// throttling failures are transient (retried next cycle); anything else is
// reported as-is.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrSourceUnavailable, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
