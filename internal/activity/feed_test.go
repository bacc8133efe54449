package activity

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"clawdash/internal/model"
)

func TestFeedCombinesRunsScheduledAndErrors(t *testing.T) {
	run := ranJob("digest", testNow.Add(-2*time.Hour), "ok")
	run.State.LastDurationMs = 2340

	launchAt := testNow.Add(3 * time.Hour)
	launch := model.CronJob{
		Name:     "launch",
		Enabled:  true,
		Schedule: model.AtSchedule{At: launchAt},
		State:    &model.CronState{NextRunAtMs: launchAt.UnixMilli()},
	}
	recurring := model.CronJob{
		Name:     "hourly",
		Enabled:  true,
		Schedule: model.CronSchedule{Expr: "0 * * * *"},
		State:    &model.CronState{NextRunAtMs: testNow.Add(time.Hour).UnixMilli()},
	}
	logs := []model.LogEntry{
		{Timestamp: "2026-10-17T11:00:00Z", Level: model.LevelError, Message: strings.Repeat("e", 120)},
		{Timestamp: "2026-10-17T11:30:00Z", Level: model.LevelInfo, Message: "ignored"},
	}

	items := Feed([]model.CronJob{run, launch, recurring}, logs, testNow, time.UTC)
	if len(items) != 3 {
		t.Fatalf("got %d items: %+v", len(items), items)
	}

	scheduled := items[0]
	if scheduled.Type != model.FeedScheduled || scheduled.Title != "Upcoming: launch" || scheduled.Status != "pending" {
		t.Errorf("scheduled item = %+v", scheduled)
	}
	if scheduled.Detail != "Scheduled for 10/17/2026, 3:00:00 PM" {
		t.Errorf("scheduled detail = %q", scheduled.Detail)
	}

	errItem := items[1]
	if errItem.Type != model.FeedError || errItem.Title != strings.Repeat("e", 100)+"..." || errItem.Status != "error" {
		t.Errorf("error item = %+v", errItem)
	}

	cronRun := items[2]
	if cronRun.Type != model.FeedCronRun || cronRun.Detail != "Ran for 2.3s" || cronRun.Status != "ok" {
		t.Errorf("cron run item = %+v", cronRun)
	}
}

func TestFeedSkipsDisabledScheduled(t *testing.T) {
	at := testNow.Add(time.Hour)
	job := model.CronJob{
		Name:     "paused",
		Schedule: model.AtSchedule{At: at},
		State:    &model.CronState{NextRunAtMs: at.UnixMilli()},
	}
	if items := Feed([]model.CronJob{job}, nil, testNow, nil); len(items) != 0 {
		t.Errorf("items = %+v", items)
	}
}

func TestFeedKeepsTenMostRecentErrors(t *testing.T) {
	var logs []model.LogEntry
	for i := range 15 {
		logs = append(logs, model.LogEntry{
			Timestamp: fmt.Sprintf("2026-10-17T10:%02d:00Z", i),
			Level:     model.LevelError,
			Message:   fmt.Sprintf("err %d", i),
		})
	}
	items := Feed(nil, logs, testNow, time.UTC)
	if len(items) != maxFeedErrors {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].Title != "err 14" || items[len(items)-1].Title != "err 5" {
		t.Errorf("kept %q..%q", items[0].Title, items[len(items)-1].Title)
	}
}

func TestFeedCapsAtMaxFeedItems(t *testing.T) {
	var jobs []model.CronJob
	for i := range 60 {
		jobs = append(jobs, ranJob(fmt.Sprintf("job-%d", i), testNow.Add(-time.Duration(i)*time.Minute), "ok"))
	}
	items := Feed(jobs, nil, testNow, time.UTC)
	if len(items) != MaxFeedItems {
		t.Fatalf("got %d items, want %d", len(items), MaxFeedItems)
	}
	for i := 1; i < len(items); i++ {
		if items[i].Time.After(items[i-1].Time) {
			t.Fatalf("items not sorted at %d", i)
		}
	}
}

func TestFeedEmpty(t *testing.T) {
	items := Feed(nil, nil, testNow, time.UTC)
	if items == nil || len(items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", items)
	}
}

func TestFeedSkipsPastScheduled(t *testing.T) {
	at := func(name string, next time.Time) model.CronJob {
		return model.CronJob{
			Name:     name,
			Enabled:  true,
			Schedule: model.AtSchedule{At: next},
			State:    &model.CronState{NextRunAtMs: next.UnixMilli()},
		}
	}
	jobs := []model.CronJob{
		at("missed", testNow.Add(-time.Hour)),
		at("now", testNow),
		at("later", testNow.Add(time.Hour)),
	}
	items := Feed(jobs, nil, testNow, time.UTC)
	if len(items) != 1 || items[0].Title != "Upcoming: later" {
		t.Errorf("items = %+v", items)
	}
}
