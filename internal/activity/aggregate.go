// Package activity merges the agent's heterogeneous event sources into
// normalized, time-ordered feeds.
package activity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"clawdash/internal/model"
)

const (
	// MaxEvents caps an aggregated activity list.
	MaxEvents = 200

	activityTitleLen = 80
	errorTitleLen    = 100

	restartMarker = "starting provider"
	webchatMarker = "webchat connected"
)

// ErrAggregation marks a failure of the merge itself, as opposed to a
// source being unavailable (which only shrinks the result).
var ErrAggregation = errors.New("failed to aggregate activity")

// Run collects every source and aggregates them. The only error it returns
// wraps ErrAggregation; an empty slice with a nil error is a valid outcome.
func Run(ctx context.Context, src Sources, now time.Time) ([]model.ActivityEvent, error) {
	in := Collect(ctx, src)
	return safeAggregate(in, now)
}

func safeAggregate(in Inputs, now time.Time) (events []model.ActivityEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("%w: %v", ErrAggregation, r)
		}
	}()
	return aggregateFn(in, now), nil
}

// aggregateFn is swapped by tests to exercise the recovery path.
var aggregateFn = Aggregate

// Aggregate turns one snapshot of the sources into at most MaxEvents
// events, most recent first. It is a pure function of its arguments.
func Aggregate(in Inputs, now time.Time) []model.ActivityEvent {
	b := builder{now: now.UTC()}

	for _, item := range in.Activity {
		b.addActivity(item)
	}
	for _, job := range in.Cron {
		b.addCron(job)
	}
	for _, entry := range in.Logs {
		b.addLog(entry)
	}
	if in.Status != nil {
		b.addStatus(*in.Status)
	}

	return sortDescCap(b.events, func(e model.ActivityEvent) time.Time { return e.Timestamp }, MaxEvents)
}

type builder struct {
	now     time.Time
	counter int
	events  []model.ActivityEvent
}

func (b *builder) push(prefix string, ev model.ActivityEvent) {
	ev.ID = fmt.Sprintf("%s-%d", prefix, b.counter)
	b.counter++
	b.events = append(b.events, ev)
}

func (b *builder) addActivity(item model.RawActivityItem) {
	source := "activity"
	if item.Source != "" {
		source = "memory/" + item.Source
	}
	b.push("activity", model.ActivityEvent{
		Timestamp:   activityTimestamp(item, b.now),
		Type:        model.EventTask,
		Title:       truncate(item.Text, activityTitleLen, "…"),
		Description: item.Text,
		Source:      source,
		Level:       model.LevelInfo,
	})
}

func (b *builder) addCron(job model.CronJob) {
	ranAt, ok := job.LastRun()
	if !ok {
		return
	}
	status := job.LastStatus()

	var desc strings.Builder
	desc.WriteString("Status: " + status)
	if d, ok := job.LastDuration(); ok {
		desc.WriteString(" (" + formatSeconds(d) + ")")
	}
	if !job.Enabled {
		desc.WriteString(" [disabled]")
	}

	level := model.LevelInfo
	if status == "error" {
		level = model.LevelError
	}
	b.push("cron", model.ActivityEvent{
		Timestamp:   ranAt,
		Type:        model.EventCron,
		Title:       "Cron: " + job.Name,
		Description: desc.String(),
		Source:      "cron:" + job.Name,
		Level:       level,
	})
}

func (b *builder) addLog(entry model.LogEntry) {
	msg := entry.Message
	switch entry.Level {
	case model.LevelError:
		b.push("log", model.ActivityEvent{
			Timestamp:   parseInstant(entry.Timestamp, b.now),
			Type:        model.EventError,
			Title:       truncate(msg, errorTitleLen, "…"),
			Description: msg,
			Source:      "system",
			Level:       model.LevelError,
		})
	case model.LevelInfo:
		var typ model.EventType
		var title string
		switch {
		case strings.Contains(msg, restartMarker):
			typ, title = model.EventSystem, "System Restart"
		case strings.Contains(msg, webchatMarker):
			typ, title = model.EventSession, "Webchat Session Connected"
		default:
			return
		}
		b.push("log", model.ActivityEvent{
			Timestamp:   parseInstant(entry.Timestamp, b.now),
			Type:        typ,
			Title:       title,
			Description: msg,
			Source:      "system",
			Level:       model.LevelInfo,
		})
	default:
		// debug is never shown; warn is not forwarded either.
	}
}

func (b *builder) addStatus(s model.StatusSnapshot) {
	b.push("status", model.ActivityEvent{
		Timestamp:   b.now,
		Type:        model.EventSystem,
		Title:       "System Status",
		Description: StatusSummary(s),
		Source:      "system",
		Level:       model.LevelInfo,
	})
}

// StatusSummary renders a snapshot as a single line.
func StatusSummary(s model.StatusSnapshot) string {
	n := model.FormatNumber
	return fmt.Sprintf("Uptime: %s | CPU: %s/%s cores | Memory: %s/%sMB (%s%%) | Disk: %s/%s (%s%%)",
		s.UptimeFormatted,
		n(s.CPULoad1), n(s.CPUCores),
		n(s.MemUsed), n(s.MemTotal), n(s.MemPercent),
		s.DiskUsed, s.DiskTotal, n(s.DiskPercent),
	)
}

// activityTimestamp combines an item's date and time as UTC. Without a
// date, or when the combination does not parse, the run's instant is used.
func activityTimestamp(item model.RawActivityItem, now time.Time) time.Time {
	var s string
	switch {
	case item.Date != "" && item.Time != "":
		s = item.Date + "T" + padLeft(item.Time, 5, '0') + ":00.000Z"
	case item.Date != "":
		s = item.Date + "T00:00:00.000Z"
	default:
		return now
	}
	return parseInstant(s, now)
}

func parseInstant(s string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

func padLeft(s string, width int, pad byte) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(string(pad), width-len(s)) + s
}

// truncate cuts s to n characters and appends suffix when it was longer.
func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

// sortDescCap orders items most recent first by millisecond value, keeping
// insertion order for ties, and keeps at most limit of them.
func sortDescCap[T any](items []T, at func(T) time.Time, limit int) []T {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(at(b).UnixMilli(), at(a).UnixMilli())
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}
	return items
}
