// Package server exposes the news cache over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/colthorp/headlines-go/internal/analyze"
	"github.com/colthorp/headlines-go/internal/api"
	"github.com/colthorp/headlines-go/internal/cache"
	"github.com/colthorp/headlines-go/internal/core"
	"github.com/colthorp/headlines-go/internal/fetch"
	"github.com/colthorp/headlines-go/internal/history"
)

// RefreshAction is the only action accepted by POST /api/refresh.
const RefreshAction = "fetch_news"

// Server handles HTTP requests for the news API.
type Server struct {
	resolver    *cache.Resolver
	trigger     cache.Trigger
	analyzer    *analyze.Analyzer
	journal     *history.Journal
	news        *api.NewsAPI
	query       api.Query
	addr        string
	maxAgeHours float64
	loc         *time.Location
	verbose     bool
}

// Options configures a Server. Journal, Analyzer and News may be nil.
type Options struct {
	Resolver    *cache.Resolver
	Trigger     cache.Trigger
	Analyzer    *analyze.Analyzer
	Journal     *history.Journal
	News        *api.NewsAPI
	Query       api.Query
	Addr        string
	MaxAgeHours float64
	Location    *time.Location
	Verbose     bool
}

// New creates a new API server.
func New(opts Options) *Server {
	s := &Server{
		resolver:    opts.Resolver,
		trigger:     opts.Trigger,
		analyzer:    opts.Analyzer,
		journal:     opts.Journal,
		news:        opts.News,
		query:       opts.Query,
		addr:        opts.Addr,
		maxAgeHours: opts.MaxAgeHours,
		loc:         opts.Location,
		verbose:     opts.Verbose,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

func (s *Server) log(msg string) {
	core.Eprint(fmt.Sprintf("[HTTP] %s", msg), s.verbose)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// News
	mux.HandleFunc("GET /api/news/smart", s.smartNews)
	mux.HandleFunc("GET /api/news/live", s.liveNews)
	mux.HandleFunc("GET /api/news", s.latestNews)

	// Articles
	mux.HandleFunc("GET /api/articles", s.listArticles)
	mux.HandleFunc("GET /api/articles/{id}", s.getArticle)

	// Actions
	mux.HandleFunc("POST /api/analyze", s.analyzeArticle)
	mux.HandleFunc("POST /api/refresh", s.refresh)

	// Status
	mux.HandleFunc("GET /api/cache/status", s.cacheStatus)
	mux.HandleFunc("GET /health", s.health)

	return withRequestID(withCORS(s.withLogging(mux)))
}

// Run starts the HTTP server and shuts it down when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		core.ProgressPrint(fmt.Sprintf("Starting server on %s", s.addr), false)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// withRequestID echoes X-Request-ID or assigns a new one.
func withRequestID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		h.ServeHTTP(w, r)
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

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.log(fmt.Sprintf("%s %s %d %s [%s]", r.Method, r.URL.RequestURI(), rec.status,
			time.Since(start).Round(time.Millisecond), r.Header.Get("X-Request-ID")))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": core.Version})
}

// ParseRequest reads refresh (alias force) and maxAge (alias max_age_hours)
// from query parameters.
func ParseRequest(r *http.Request, defaultMaxAge float64) (cache.Request, error) {
	q := r.URL.Query()
	req := cache.Request{MaxAgeHours: defaultMaxAge}

	name, v := "refresh", q.Get("refresh")
	if v == "" {
		name, v = "force", q.Get("force")
	}
	if v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid %s %q", name, v)
		}
		req.Force = force
	}

	v = q.Get("maxAge")
	if v == "" {
		v = q.Get("max_age_hours")
	}
	if v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid maxAge %q", v)
		}
		req.MaxAgeHours = hours
	}
	return req, nil
}

func (s *Server) smartNews(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r, s.maxAgeHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d.Response())
}

// liveNews fetches positive articles from the news API without touching the cache.
func (s *Server) liveNews(w http.ResponseWriter, r *http.Request) {
	if s.news == nil {
		s.log("Live news requested but no news API is configured")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"news": []cache.Record{}})
		return
	}

	articles, err := s.news.FetchPositiveNews(r.Context(), s.query)
	if err != nil {
		s.log(fmt.Sprintf("Live fetch failed: %v", err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"news": []cache.Record{}})
		return
	}

	now := time.Now().In(s.loc)
	records := make([]cache.Record, 0, len(articles))
	for _, a := range articles {
		records = append(records, fetch.Annotate(a, now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"news": records})
}

func (s *Server) latestNews(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.latestRecords(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"news": records})
}

// latestRecords loads the snapshot for ?date= or the latest one.
func (s *Server) latestRecords(r *http.Request) ([]cache.Record, *cache.Snapshot, error) {
	store := s.resolver.Store()

	var snap *cache.Snapshot
	var err error
	if ds := r.URL.Query().Get("date"); ds != "" {
		day, perr := core.ParseDateSpec(ds, time.Now().In(s.loc))
		if perr != nil {
			return nil, nil, badRequest{perr}
		}
		snap, err = store.ForDate(day)
	} else {
		snap, err = store.Latest()
	}
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return []cache.Record{}, nil, nil
	}
	records, err := store.Load(*snap)
	if err != nil {
		return nil, nil, err
	}
	return records, snap, nil
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	records, _, err := s.latestRecords(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	articles := make([]cache.Record, len(records))
	for i, rec := range records {
		articles[i] = withID(rec, i+1)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"articles": articles})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	records, _, err := s.latestRecords(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if id > len(records) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, withID(records[id-1], id))
}

func withID(rec cache.Record, id int) cache.Record {
	out := make(cache.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out["id"] = strconv.Itoa(id)
	return out
}

// AnalyzeRequest is the request body for POST /api/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

func (s *Server) analyzeArticle(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, analyze.ErrMissingURL.Error())
		return
	}
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis not configured")
		return
	}

	res, err := s.analyzer.Analyze(r.Context(), req.URL)
	if err != nil {
		s.log(fmt.Sprintf("Analyze failed: %v", err))
		writeError(w, http.StatusInternalServerError, "Failed to analyze article")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RefreshRequest is the request body for POST /api/refresh.
type RefreshRequest struct {
	Action string `json:"action"`
}

// RefreshResponse reports the outcome of a manual refresh.
type RefreshResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != RefreshAction {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}

	start := time.Now()
	out := s.trigger.Trigger(context.WithoutCancel(r.Context()))
	if s.journal != nil {
		if err := s.journal.RecordRefresh(r.Context(), false, out, time.Since(start)); err != nil {
			s.log(fmt.Sprintf("Failed to journal refresh: %v", err))
		}
	}

	if !out.OK {
		writeJSON(w, http.StatusInternalServerError, RefreshResponse{
			Success: false,
			Output:  out.Message,
			Message: "Failed to fetch news",
		})
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Success: true,
		Output:  out.Message,
		Message: "News fetched successfully",
	})
}

// StatusResponse is the body of GET /api/cache/status.
type StatusResponse struct {
	*cache.Status
	History *history.Summary `json:"history,omitempty"`
}

func (s *Server) cacheStatus(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r, s.maxAgeHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.resolver.Status(req.MaxAgeHours)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := StatusResponse{Status: st}
	if s.journal != nil {
		if sum, err := s.journal.Summary(r.Context()); err == nil {
			resp.History = sum
		} else {
			s.log(fmt.Sprintf("History summary failed: %v", err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type badRequest struct{ error }

// ErrorResponse is the body of a failed request. Details carries the
// underlying error for storage and parse faults.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeStoreError maps resolution and storage errors onto status codes.
// Storage and parse faults are 500 with the cause in details.
func writeStoreError(w http.ResponseWriter, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeError(w, http.StatusBadRequest, br.Error())
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "Failed to fetch news",
		Details: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
