package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 3 * * 1-5", false},
		{"* * * *", true},
		{"*/5 * * * * *", true},
		{"not a schedule", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpcomingCronTimes_Next(t *testing.T) {
	from := time.Date(2024, 3, 1, 10, 2, 30, 0, time.UTC)

	next, err := UpcomingCronTimes("*/5 * * * *", from, 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)}, next)

	// Non-UTC input is normalised
	local := from.In(time.FixedZone("plus2", 2*60*60))
	next, err = UpcomingCronTimes("0 * * * *", local, 1)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)}, next)

	_, err = UpcomingCronTimes("bogus", from, 1)
	assert.Error(t, err)
}

func TestUpcomingCronTimes(t *testing.T) {
	from := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)

	times, err := UpcomingCronTimes("0 0 * * *", from, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}, times)

	times, err = UpcomingCronTimes("*/5 * * * *", from, 0)
	require.NoError(t, err)
	assert.Len(t, times, 1)
}
