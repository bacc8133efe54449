package activity

import (
	"time"

	"clawdash/internal/model"
)

const (
	// MaxFeedItems caps the combined feed.
	MaxFeedItems = 40
	// maxFeedErrors is how many error logs the feed considers.
	maxFeedErrors = 10
)

// Feed merges cron runs, upcoming one-shot jobs (next run after now) and
// recent errors into one list, most recent first, capped at MaxFeedItems.
// "Scheduled for" labels are rendered in loc.
func Feed(jobs []model.CronJob, logs []model.LogEntry, now time.Time, loc *time.Location) []model.FeedItem {
	if loc == nil {
		loc = time.UTC
	}
	items := make([]model.FeedItem, 0)

	for _, job := range jobs {
		ranAt, ok := job.LastRun()
		if !ok {
			continue
		}
		item := model.FeedItem{Time: ranAt, Type: model.FeedCronRun, Title: job.Name}
		if d, ok := job.LastDuration(); ok {
			item.Detail = "Ran for " + formatSeconds(d)
		}
		if job.State != nil {
			item.Status = job.State.LastStatus
		}
		items = append(items, item)
	}

	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		if _, isAt := job.Schedule.(model.AtSchedule); !isAt {
			continue
		}
		next, ok := job.NextRun()
		if !ok || !next.After(now) {
			continue
		}
		items = append(items, model.FeedItem{
			Time:   next,
			Type:   model.FeedScheduled,
			Title:  "Upcoming: " + job.Name,
			Detail: "Scheduled for " + next.In(loc).Format("1/2/2006, 3:04:05 PM"),
			Status: "pending",
		})
	}

	errs := make([]model.FeedItem, 0)
	for _, entry := range logs {
		if entry.Level != model.LevelError {
			continue
		}
		errs = append(errs, model.FeedItem{
			Time:   parseInstant(entry.Timestamp, now.UTC()),
			Type:   model.FeedError,
			Title:  truncate(entry.Message, errorTitleLen, "..."),
			Status: "error",
		})
	}
	errs = sortDescCap(errs, feedTime, maxFeedErrors)
	items = append(items, errs...)

	return sortDescCap(items, feedTime, MaxFeedItems)
}

func feedTime(f model.FeedItem) time.Time { return f.Time }
