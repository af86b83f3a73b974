// Package cronspec wraps the cron expression parser shared by the job
// repository (validity checking) and the schedule evaluator (due matching).
// Expressions use the standard 5-field form (minute hour dom month dow).
package cronspec

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the standard 5-field cron syntax, including descriptors
// like @hourly.
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse compiles a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("cronspec: invalid expression %q: %w", expr, err)
	}
	return sched, nil
}

// Validate reports whether expr is a well-formed cron expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// DueAt reports whether the schedule fires at the given minute.
// t is truncated to minute precision before matching.
func DueAt(sched cron.Schedule, t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
