package util

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field schedules, the same dialect asynq's scheduler accepts.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func parseCron(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// ValidateCronExpr checks that expr is a five-field cron schedule.
func ValidateCronExpr(expr string) error {
	_, err := parseCron(expr)
	return err
}

// UpcomingCronTimes returns the next n runs of expr after from, in UTC.
func UpcomingCronTimes(expr string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := parseCron(expr)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}

	times := make([]time.Time, 0, n)
	t := from.UTC()
	for i := 0; i < n; i++ {
		t = schedule.Next(t)
		times = append(times, t)
	}
	return times, nil
}
