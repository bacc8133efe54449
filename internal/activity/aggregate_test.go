package activity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clawdash/internal/model"
)

var testNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

type fakeSources struct {
	activity []model.RawActivityItem
	cron     []model.CronJob
	logs     []model.LogEntry
	status   *model.StatusSnapshot
	usage    *model.UsageData
	skills   []model.Skill

	activityErr, cronErr, logsErr, statusErr error
}

func (f *fakeSources) Activity(context.Context) ([]model.RawActivityItem, error) {
	return f.activity, f.activityErr
}

func (f *fakeSources) CronJobs(context.Context) ([]model.CronJob, error) {
	return f.cron, f.cronErr
}

func (f *fakeSources) Logs(context.Context) ([]model.LogEntry, error) {
	return f.logs, f.logsErr
}

func (f *fakeSources) Status(context.Context) (*model.StatusSnapshot, error) {
	return f.status, f.statusErr
}

func (f *fakeSources) Usage(context.Context) (*model.UsageData, error) {
	return f.usage, nil
}

func (f *fakeSources) Skills(context.Context) ([]model.Skill, error) {
	return f.skills, nil
}

func ranJob(name string, at time.Time, status string) model.CronJob {
	return model.CronJob{
		ID:      name,
		Name:    name,
		Enabled: true,
		State:   &model.CronState{LastRunAtMs: at.UnixMilli(), LastStatus: status},
	}
}

func assertSortedDesc(t *testing.T, events []model.ActivityEvent) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.UnixMilli() > events[i-1].Timestamp.UnixMilli() {
			t.Fatalf("events not sorted at %d: %v after %v", i, events[i].Timestamp, events[i-1].Timestamp)
		}
	}
}

func TestAggregateMergesSources(t *testing.T) {
	in := Inputs{
		Activity: []model.RawActivityItem{{Date: "2026-10-17", Time: "9:05", Text: "Deployed dashboard", Source: "2026-10-17.md"}},
		Cron: []model.CronJob{
			ranJob("digest", testNow.Add(-time.Hour), "ok"),
			{ID: "never", Name: "never", Enabled: true},
		},
		Logs: []model.LogEntry{
			{Timestamp: "2026-10-17T10:00:00.000Z", Level: model.LevelInfo, Message: "[gateway] starting provider anthropic"},
			{Timestamp: "2026-10-17T10:30:00.000Z", Level: model.LevelInfo, Message: "webchat connected from 10.0.0.2"},
			{Timestamp: "2026-10-17T10:45:00.000Z", Level: model.LevelInfo, Message: "heartbeat"},
			{Timestamp: "2026-10-17T11:00:00.000Z", Level: model.LevelDebug, Message: "starting provider debug"},
			{Timestamp: "2026-10-17T11:10:00.000Z", Level: model.LevelWarn, Message: "slow response"},
			{Timestamp: "2026-10-17T11:20:00.000Z", Level: model.LevelError, Message: "tool call failed"},
		},
		Status: &model.StatusSnapshot{UptimeFormatted: "3d 4h", CPULoad1: 0.5, CPUCores: 4, MemUsed: 512, MemTotal: 2048, MemPercent: 25, DiskUsed: "41G", DiskTotal: "100G", DiskPercent: 41},
	}

	events := Aggregate(in, testNow)
	if len(events) != 6 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	assertSortedDesc(t, events)

	titles := make([]string, len(events))
	for i, e := range events {
		titles[i] = e.Title
	}
	want := []string{"System Status", "tool call failed", "Cron: digest", "Webchat Session Connected", "System Restart", "Deployed dashboard"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %q, want %q", titles, want)
		}
	}

	status := events[0]
	if status.ID != "status-5" || !status.Timestamp.Equal(testNow) {
		t.Errorf("status event = %+v", status)
	}
	wantSummary := "Uptime: 3d 4h | CPU: 0.5/4 cores | Memory: 512/2048MB (25%) | Disk: 41G/100G (41%)"
	if status.Description != wantSummary {
		t.Errorf("summary = %q, want %q", status.Description, wantSummary)
	}

	task := events[5]
	if task.ID != "activity-0" || task.Source != "memory/2026-10-17.md" || task.Type != model.EventTask {
		t.Errorf("task event = %+v", task)
	}
	if !task.Timestamp.Equal(time.Date(2026, time.October, 17, 9, 5, 0, 0, time.UTC)) {
		t.Errorf("task timestamp = %v", task.Timestamp)
	}

	errEvent := events[1]
	if errEvent.Type != model.EventError || errEvent.Level != model.LevelError || errEvent.Source != "system" {
		t.Errorf("error event = %+v", errEvent)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	in := Inputs{
		Activity: []model.RawActivityItem{{Text: "undated"}, {Date: "2026-10-16", Text: "yesterday"}},
		Cron:     []model.CronJob{ranJob("a", testNow, "ok"), ranJob("b", testNow, "ok")},
	}
	first := Aggregate(in, testNow)
	second := Aggregate(in, testNow)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
	// Ties keep insertion order: activity first, then the two cron jobs.
	if first[0].ID != "activity-0" || first[1].ID != "cron-2" || first[2].ID != "cron-3" {
		t.Errorf("tie order = %s, %s, %s", first[0].ID, first[1].ID, first[2].ID)
	}
}

func TestAggregateCapsAtMaxEvents(t *testing.T) {
	var items []model.RawActivityItem
	for i := range 250 {
		items = append(items, model.RawActivityItem{Date: "2026-10-17", Time: "12:00", Text: strings.Repeat("x", i%5+1)})
	}
	events := Aggregate(Inputs{Activity: items}, testNow)
	if len(events) != MaxEvents {
		t.Fatalf("got %d events, want %d", len(events), MaxEvents)
	}
	if events[0].ID != "activity-0" || events[MaxEvents-1].ID != "activity-199" {
		t.Errorf("cap kept %s..%s", events[0].ID, events[MaxEvents-1].ID)
	}
}

func TestAggregateTruncatesTitles(t *testing.T) {
	text := strings.Repeat("a", 85)
	events := Aggregate(Inputs{Activity: []model.RawActivityItem{{Text: text}}}, testNow)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if want := strings.Repeat("a", 80) + "…"; events[0].Title != want {
		t.Errorf("title = %q", events[0].Title)
	}
	if events[0].Description != text {
		t.Error("description should keep the full text")
	}
	if events[0].Source != "activity" {
		t.Errorf("source = %q", events[0].Source)
	}
}

func TestAggregateCronDescription(t *testing.T) {
	job := ranJob("backup", testNow, "error")
	job.Enabled = false
	job.State.LastDurationMs = 1500
	events := Aggregate(Inputs{Cron: []model.CronJob{job}}, testNow)
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	e := events[0]
	if e.Description != "Status: error (1.5s) [disabled]" || e.Level != model.LevelError || e.Source != "cron:backup" {
		t.Errorf("cron event = %+v", e)
	}
}

func TestAggregateBadTimestampsFallBackToNow(t *testing.T) {
	in := Inputs{
		Activity: []model.RawActivityItem{{Date: "not-a-date", Time: "9:00", Text: "odd"}},
		Logs:     []model.LogEntry{{Timestamp: "yesterday", Level: model.LevelError, Message: "boom"}},
	}
	for _, e := range Aggregate(in, testNow) {
		if !e.Timestamp.Equal(testNow) {
			t.Errorf("%s timestamp = %v, want now", e.ID, e.Timestamp)
		}
	}
}

func TestRunSurvivesFailingSources(t *testing.T) {
	src := &fakeSources{
		activity:  []model.RawActivityItem{{Date: "2026-10-17", Text: "kept"}},
		logsErr:   errors.New("connection refused"),
		statusErr: errors.New("timeout"),
		cronErr:   errors.New("502"),
	}
	events, err := Run(context.Background(), src, testNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 1 || events[0].Title != "kept" {
		t.Errorf("events = %+v", events)
	}
}

func TestRunAllSourcesDown(t *testing.T) {
	fail := errors.New("down")
	src := &fakeSources{activityErr: fail, cronErr: fail, logsErr: fail, statusErr: fail}
	events, err := Run(context.Background(), src, testNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("events = %#v, want empty non-nil slice", events)
	}
}

func TestRunMapsPanicToErrAggregation(t *testing.T) {
	orig := aggregateFn
	t.Cleanup(func() { aggregateFn = orig })
	aggregateFn = func(Inputs, time.Time) []model.ActivityEvent { panic("bad merge") }

	events, err := Run(context.Background(), &fakeSources{}, testNow)
	if !errors.Is(err, ErrAggregation) {
		t.Fatalf("err = %v, want ErrAggregation", err)
	}
	if !strings.Contains(err.Error(), "bad merge") {
		t.Errorf("err = %v, want panic value in details", err)
	}
	if events != nil {
		t.Errorf("events = %+v, want nil", events)
	}
}

func TestFormatSecondsRoundsHalfUp(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.0s"},
		{249 * time.Millisecond, "0.2s"},
		{250 * time.Millisecond, "0.3s"},
		{1500 * time.Millisecond, "1.5s"},
		{2340 * time.Millisecond, "2.3s"},
		{2350 * time.Millisecond, "2.4s"},
		{59_950 * time.Millisecond, "60.0s"},
	}
	for _, tt := range tests {
		if got := formatSeconds(tt.d); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}

	job := ranJob("quick", testNow, "ok")
	job.State.LastDurationMs = 250
	events := Aggregate(Inputs{Cron: []model.CronJob{job}}, testNow)
	if len(events) != 1 || events[0].Description != "Status: ok (0.3s)" {
		t.Errorf("cron events = %+v", events)
	}
}
