package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clawdash/internal/activity"
	"clawdash/internal/calendar"
	"clawdash/internal/config"
	"clawdash/internal/cronexpr"
	"clawdash/internal/ics"
	appLog "clawdash/internal/log"
	"clawdash/internal/model"
)

// Sources is everything the API reads from the agent. upstream.Client
// implements it.
type Sources interface {
	activity.Sources
	activity.OverviewSources
}

// Server provides the dashboard JSON API over the aggregation core.
type Server struct {
	cfg      *config.Config
	src      Sources
	projects activity.ProjectLoader
	loc      *time.Location
	now      func() time.Time
	mux      *http.ServeMux

	// In-memory cache of rendered responses keyed by cacheKey, so that
	// polling UIs do not fan out to the agent on every request.
	cacheMu sync.RWMutex
	cache   map[string]cachedResponse
}

// cachedResponse is one rendered response and the time it was built.
type cachedResponse struct {
	status      int
	contentType string
	body        []byte
	updatedAt   time.Time
}

// NewServer constructs a new Server. projects may be nil.
func NewServer(cfg *config.Config, src Sources, projects activity.ProjectLoader) *Server {
	s := &Server{
		cfg:      cfg,
		src:      src,
		projects: projects,
		loc:      resolveLocationOrLocal(cfg.Timezone),
		now:      time.Now,
		mux:      http.NewServeMux(),
		cache:    make(map[string]cachedResponse),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.mux)
}

// Location returns the display timezone.
func (s *Server) Location() *time.Location {
	return s.loc
}

// requestIDMiddleware tags every request with an X-Request-Id and logs it
// once it completes.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		appLog.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/activity", s.cached(s.renderActivity))
	s.mux.HandleFunc("/api/feed", s.cached(s.renderFeed))
	s.mux.HandleFunc("/api/overview", s.cached(s.renderOverview))
	s.mux.HandleFunc("/api/cron", s.cached(s.renderCron))
	s.mux.HandleFunc("/api/cron/describe", s.handleDescribe)
	s.mux.HandleFunc("/api/calendar", s.cached(s.renderCalendar))
	s.mux.HandleFunc("/api/calendar.ics", s.cached(s.renderCalendarICS))
	s.mux.HandleFunc("/api/projects", s.handleProjects)
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// cached serves GET requests from the response cache while it is fresh and
// stores successful renders. A zero TTL disables caching.
func (s *Server) cached(render func(r *http.Request) cachedResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		key := cacheKey(r)
		ttl := s.cfg.CacheTTL()

		s.cacheMu.RLock()
		c, ok := s.cache[key]
		s.cacheMu.RUnlock()
		if ok && ttl > 0 && time.Since(c.updatedAt) < ttl {
			writeCached(w, c)
			return
		}

		resp := render(r)
		if resp.status == http.StatusOK && ttl > 0 {
			s.store(key, resp, ttl)
		}
		writeCached(w, resp)
	}
}

// cachedParams are the only query parameters any cached route reads.
var cachedParams = []string{"year", "month"}

// cacheKey is the path plus the normalized query parameters the handler
// reads. Anything else in the query (cache busters) is ignored.
func cacheKey(r *http.Request) string {
	q := r.URL.Query()
	var b strings.Builder
	b.WriteString(r.URL.Path)
	sep := byte('?')
	for _, name := range cachedParams {
		n, err := strconv.Atoi(q.Get(name))
		if err != nil {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(name + "=" + strconv.Itoa(n))
		sep = '&'
	}
	return b.String()
}

// store caches resp under key and drops entries that are past ttl.
func (s *Server) store(key string, resp cachedResponse, ttl time.Duration) {
	now := time.Now()
	resp.updatedAt = now
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for k, c := range s.cache {
		if now.Sub(c.updatedAt) >= ttl {
			delete(s.cache, k)
		}
	}
	s.cache[key] = resp
}

// WarmActivity rebuilds the cached /api/activity response. The serve
// command calls it on the refresh schedule.
func (s *Server) WarmActivity(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/api/activity", nil)
	if err != nil {
		appLog.Error("activity warm-up request failed", err)
		return
	}
	resp := s.renderActivity(req)
	if resp.status != http.StatusOK {
		appLog.Warn("activity warm-up did not succeed", "status", resp.status)
		return
	}
	if ttl := s.cfg.CacheTTL(); ttl > 0 {
		s.store(cacheKey(req), resp, ttl)
	}
	appLog.Debug("activity cache warmed", "bytes", len(resp.body))
}

func (s *Server) renderActivity(r *http.Request) cachedResponse {
	events, err := activity.Run(r.Context(), s.src, s.now())
	if err != nil {
		appLog.Error("activity aggregation failed", err)
		details := err.Error()
		if errors.Is(err, activity.ErrAggregation) {
			details = strings.TrimPrefix(details, activity.ErrAggregation.Error()+": ")
		}
		return jsonResponse(http.StatusInternalServerError, aggregationError{
			Error:   "Failed to aggregate activity",
			Details: details,
		})
	}
	return jsonResponse(http.StatusOK, events)
}

type aggregationError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (s *Server) renderFeed(r *http.Request) cachedResponse {
	jobs, logs := activity.CollectFeed(r.Context(), s.src)
	return jsonResponse(http.StatusOK, activity.Feed(jobs, logs, s.now(), s.loc))
}

func (s *Server) renderOverview(r *http.Request) cachedResponse {
	in := activity.CollectOverview(r.Context(), s.src, s.projects)
	return jsonResponse(http.StatusOK, activity.Overview(in, s.now(), s.loc))
}

func (s *Server) renderCron(r *http.Request) cachedResponse {
	jobs, err := s.src.CronJobs(r.Context())
	if err != nil {
		appLog.Error("cron jobs unavailable", err)
		return jsonResponse(http.StatusBadGateway, errorResponse{Error: "failed to fetch cron jobs"})
	}
	return jsonResponse(http.StatusOK, activity.Jobs(jobs, s.now(), s.loc))
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Year            int                        `json:"year"`
	Month           int                        `json:"month"`
	DisplayTimeZone string                     `json:"display_timezone"`
	Occurrences     []model.CalendarOccurrence `json:"occurrences"`
	SpecialEvents   []model.CalendarOccurrence `json:"special_events"`
}

// monthParams reads year/month from the query, defaulting to the current
// month in the display timezone.
//
// GET /api/calendar?year=2026&month=10
//   - year:  four-digit year
//   - month: 1-12
func (s *Server) monthParams(r *http.Request) (int, time.Month, bool) {
	now := s.now().In(s.loc)
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	month := parseIntDefault(q.Get("month"), int(now.Month()))
	if year < 1 || year > 9999 || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func (s *Server) monthOccurrences(r *http.Request) (int, time.Month, []model.CalendarOccurrence, *cachedResponse) {
	year, month, ok := s.monthParams(r)
	if !ok {
		resp := jsonResponse(http.StatusBadRequest, errorResponse{Error: "invalid year or month"})
		return 0, 0, nil, &resp
	}
	jobs, err := s.src.CronJobs(r.Context())
	if err != nil {
		// The calendar degrades to empty like the other views.
		appLog.Error("calendar: cron jobs unavailable", err)
		jobs = nil
	}

	appLog.Debug("api calendar request", "year", year, "month", int(month), "jobs", len(jobs), "timezone", s.loc.String())
	return year, month, calendar.ExpandMonth(jobs, year, month, s.loc), nil
}

func (s *Server) renderCalendar(r *http.Request) cachedResponse {
	year, month, occs, bad := s.monthOccurrences(r)
	if bad != nil {
		return *bad
	}
	return jsonResponse(http.StatusOK, calendarResponse{
		Year:            year,
		Month:           int(month),
		DisplayTimeZone: s.loc.String(),
		Occurrences:     occs,
		SpecialEvents:   calendar.SpecialEvents(occs),
	})
}

func (s *Server) renderCalendarICS(r *http.Request) cachedResponse {
	year, month, occs, bad := s.monthOccurrences(r)
	if bad != nil {
		return *bad
	}
	name := "Agent schedule " + time.Date(year, month, 1, 0, 0, 0, 0, s.loc).Format("2006-01")
	return cachedResponse{
		status:      http.StatusOK,
		contentType: "text/calendar; charset=utf-8",
		body:        []byte(ics.Export(name, occs, s.now())),
	}
}

// describeResponse is the JSON response shape for /api/cron/describe.
type describeResponse struct {
	Time  string `json:"time"`
	Tag   string `json:"tag"`
	Daily bool   `json:"daily"`
	Valid bool   `json:"valid"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	expr := strings.TrimSpace(r.URL.Query().Get("expr"))
	if expr == "" {
		writeError(w, http.StatusBadRequest, "expr is required")
		return
	}
	d := cronexpr.Describe(expr)
	writeJSON(w, http.StatusOK, describeResponse{
		Time:  d.Time,
		Tag:   d.Tag,
		Daily: cronexpr.IsDaily(expr),
		Valid: cronexpr.Validate(expr) == nil,
	})
}

// handleProjects lists workspace projects. Any failure is an empty list.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects := []model.Project{}
	if s.projects != nil {
		p, err := s.projects.Projects(r.Context())
		if err != nil {
			appLog.Error("projects unavailable", err)
		} else {
			projects = p
		}
	}
	writeJSON(w, http.StatusOK, projects)
}

type errorResponse struct {
	Error string `json:"error"`
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func jsonResponse(status int, v any) cachedResponse {
	body, err := json.Marshal(v)
	if err != nil {
		appLog.Error("failed to encode JSON response", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	return cachedResponse{
		status:      status,
		contentType: "application/json; charset=utf-8",
		body:        append(body, '\n'),
	}
}

func writeCached(w http.ResponseWriter, c cachedResponse) {
	w.Header().Set("Content-Type", c.contentType)
	w.WriteHeader(c.status)
	_, _ = w.Write(c.body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
