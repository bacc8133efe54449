// Package upstream talks to the agent API that the dashboard visualizes.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "clawdash/internal/log"
	"clawdash/internal/model"
)

// Endpoint paths relative to the configured base URL.
const (
	PathActivity = "/activity"
	PathCron     = "/cron"
	PathLogs     = "/logs"
	PathStatus   = "/status"
	PathUsage    = "/usage"
	PathSkills   = "/skills"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// StatusError is returned when the agent answers with a non-2xx status.
type StatusError struct {
	Path       string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: %s", e.Path, e.Status)
}

// Client fetches JSON documents from the agent API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a Client for baseURL (e.g. "http://localhost:3001/api").
// Every request is bounded by timeout; a zero timeout falls back to 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Activity(ctx context.Context) ([]model.RawActivityItem, error) {
	var out []model.RawActivityItem
	if err := c.getJSON(ctx, PathActivity, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CronJobs(ctx context.Context) ([]model.CronJob, error) {
	var out []model.CronJob
	if err := c.getJSON(ctx, PathCron, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logs(ctx context.Context) ([]model.LogEntry, error) {
	var out []model.LogEntry
	if err := c.getJSON(ctx, PathLogs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Status returns the host snapshot. A literal JSON null is reported as an
// error so callers can treat it like any other unavailable source.
func (c *Client) Status(ctx context.Context) (*model.StatusSnapshot, error) {
	var out *model.StatusSnapshot
	if err := c.getJSON(ctx, PathStatus, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("upstream /status: empty snapshot")
	}
	return out, nil
}

func (c *Client) Usage(ctx context.Context) (*model.UsageData, error) {
	var out *model.UsageData
	if err := c.getJSON(ctx, PathUsage, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("upstream /usage: empty document")
	}
	return out, nil
}

func (c *Client) Skills(ctx context.Context) ([]model.Skill, error) {
	var out []model.Skill
	if err := c.getJSON(ctx, PathSkills, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("upstream %s: decode: %w", path, err)
	}

	appLog.Debug("upstream fetch ok", "url", redactURL(url), "status", resp.StatusCode, "elapsed", time.Since(start))
	return nil
}

// redactURL keeps only scheme and host of u for logging.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "upstream:" + redactedSuffix
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host + redactedSuffix
}
