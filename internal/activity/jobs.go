package activity

import (
	"time"

	"clawdash/internal/cronexpr"
	"clawdash/internal/model"
)

// JobRow is one line of the cron jobs table.
type JobRow struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Enabled           bool                   `json:"enabled"`
	Kind              string                 `json:"kind"`
	Schedule          cronexpr.ScheduleLabel `json:"schedule"`
	LastRun           *time.Time             `json:"lastRun,omitempty"`
	LastRunLabel      string                 `json:"lastRunLabel"`
	LastStatus        string                 `json:"lastStatus"`
	NextRun           *time.Time             `json:"nextRun,omitempty"`
	NextRunLabel      string                 `json:"nextRunLabel"`
	NextRunEstimated  bool                   `json:"nextRunEstimated,omitempty"`
	ConsecutiveErrors int                    `json:"consecutiveErrors"`
}

// Jobs builds the cron table in input order. When the agent has not
// reported a next run for an enabled job, one is computed from the
// schedule and flagged as estimated.
func Jobs(jobs []model.CronJob, now time.Time, loc *time.Location) []JobRow {
	rows := make([]JobRow, 0, len(jobs))
	for _, j := range jobs {
		row := JobRow{
			ID:           j.ID,
			Name:         j.Name,
			Enabled:      j.Enabled,
			Schedule:     cronexpr.FormatSchedule(j.Schedule, loc),
			LastRunLabel: "-",
			LastStatus:   j.LastStatus(),
			NextRunLabel: "-",
		}
		if j.Schedule != nil {
			row.Kind = j.Schedule.Kind()
		}
		if j.State != nil {
			row.ConsecutiveErrors = j.State.ConsecutiveErrors
		}
		if at, ok := j.LastRun(); ok {
			row.LastRun = &at
			row.LastRunLabel = TimeAgo(at, now)
		}

		next, ok := j.NextRun()
		if !ok && j.Enabled {
			if next, ok = cronexpr.NextRun(j.Schedule, now); ok {
				row.NextRunEstimated = true
			}
		}
		if ok {
			row.NextRun = &next
			row.NextRunLabel = TimeUntil(next, now)
		}
		rows = append(rows, row)
	}
	return rows
}
