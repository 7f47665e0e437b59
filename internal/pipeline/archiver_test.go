package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron_Valid(t *testing.T) {
	assert.NoError(t, ParseCron("0 3 1 * *"))
	assert.NoError(t, ParseCron("* * * * *"))
	assert.NoError(t, ParseCron("0,30 0,12 * * *"))
}

func TestParseCron_Invalid(t *testing.T) {
	assert.Error(t, ParseCron(""))
	assert.Error(t, ParseCron("0 3 1 *"))
	assert.Error(t, ParseCron("x * * * *"))
}

func TestNextCronTime_MonthlySchedule(t *testing.T) {
	after := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	next, err := nextCronTime("0 3 1 * *", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_NextMinute(t *testing.T) {
	after := time.Date(2026, 8, 15, 10, 0, 30, 0, time.UTC)

	next, err := nextCronTime("* * * * *", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 15, 10, 1, 0, 0, time.UTC), next)
}
