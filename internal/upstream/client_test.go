package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clawdash/internal/model"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/activity", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"date":"2026-10-17","time":"9:05","text":"deployed","source":"2026-10-17.md"}]`))
	})
	mux.HandleFunc("/api/cron", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","name":"digest","enabled":true,"schedule":{"kind":"cron","expr":"0 9 * * *"},"state":{"lastRunAtMs":1760000000000,"lastStatus":"ok"}}]`))
	})
	mux.HandleFunc("/api/logs", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	mux.HandleFunc("/api/usage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalTokens":10,"dailyUsage":{"2026-10-17":{"tokens":4,"cost":0.5,"runs":2}}}`))
	})
	mux.HandleFunc("/api/skills", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientDecodesSources(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api/", time.Second)
	ctx := context.Background()

	items, err := c.Activity(ctx)
	if err != nil {
		t.Fatalf("Activity: %v", err)
	}
	if len(items) != 1 || items[0].Time != "9:05" || items[0].Source != "2026-10-17.md" {
		t.Errorf("items = %+v", items)
	}

	jobs, err := c.CronJobs(ctx)
	if err != nil {
		t.Fatalf("CronJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %+v", jobs)
	}
	if _, ok := jobs[0].Schedule.(model.CronSchedule); !ok {
		t.Errorf("schedule = %#v", jobs[0].Schedule)
	}

	usage, err := c.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage.DailyUsage["2026-10-17"].Runs != 2 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestClientReportsFailures(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api", time.Second)
	ctx := context.Background()

	_, err := c.Logs(ctx)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError || se.Path != PathLogs {
		t.Errorf("Logs error = %v", err)
	}

	if _, err := c.Status(ctx); err == nil {
		t.Error("null status should be an error")
	}
	if _, err := c.Skills(ctx); err == nil {
		t.Error("invalid JSON should be an error")
	}
}

func TestClientHonorsContext(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/api", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Activity(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("http://agent:3001/api/logs?token=x"); got != "http://agent:3001/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("nonsense"); got != "upstream:/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
}
