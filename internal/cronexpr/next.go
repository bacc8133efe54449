package cronexpr

import (
	"time"

	"github.com/robfig/cron/v3"

	"clawdash/internal/model"
)

// NextRun computes the first instant strictly after `after` at which s
// fires. Unlike the calendar expansion this uses full cron semantics via
// the standard parser, so it only succeeds for well-formed expressions.
//
//   - cron:  next match of the expression, evaluated in s.TZ when set
//   - at:    the instant itself if it is still ahead
//   - every: after + interval
func NextRun(s model.Schedule, after time.Time) (time.Time, bool) {
	switch s := s.(type) {
	case model.CronSchedule:
		spec := s.Expr
		if s.TZ != "" {
			spec = "CRON_TZ=" + s.TZ + " " + spec
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(after)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	case model.AtSchedule:
		if s.At.IsZero() || !s.At.After(after) {
			return time.Time{}, false
		}
		return s.At, true
	case model.EverySchedule:
		if s.EveryMs <= 0 {
			return time.Time{}, false
		}
		return after.Add(s.Interval()), true
	default:
		return time.Time{}, false
	}
}

// Validate reports whether expr is accepted by the standard cron parser.
// The dashboard never rejects jobs on this basis; it is surfaced as a hint.
func Validate(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}
