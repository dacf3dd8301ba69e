// Package api serves enriched session analyses and reference rules to the
// analyst UI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"honeytrail/internal/corpus"
	"honeytrail/internal/jsonfile"
	"honeytrail/internal/layout"
	"honeytrail/internal/logger"
	"honeytrail/internal/similarity"
	"honeytrail/pkg/models"
)

const shortSummaryChars = 200

// Config configures the HTTP server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RuleLookup fetches one stored reference document.
type RuleLookup interface {
	Get(ctx context.Context, corpus, id string) (*similarity.Document, error)
}

// Server exposes the session browser API.
type Server struct {
	r      *chi.Mux
	layout layout.Layout
	rules  RuleLookup
	cfg    Config
	today  func() string
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	SessionID    string      `json:"session_id"`
	Sensor       string      `json:"sensor"`
	AttackIntent interface{} `json:"attack_intent"`
	ShortSummary string      `json:"short_summary"`
	RiskScore    interface{} `json:"risk_score"`
	Confidence   interface{} `json:"confidence"`
	SrcIP        interface{} `json:"src_ip"`
	DestIP       interface{} `json:"dest_ip"`
	StartTime    interface{} `json:"start_time"`
	EndTime      interface{} `json:"end_time"`
}

// NewServer builds the router. rules may be nil, in which case the sigma
// endpoint reports the store as unavailable.
func NewServer(cfg Config, l layout.Layout, rules RuleLookup) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	s := &Server{r: chi.NewRouter(), layout: l, rules: rules, cfg: cfg, today: layout.Today}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(requestLogger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}).Handler)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.Get("/api/health", s.health)
	s.r.Get("/api/sessions", s.listSessions)
	s.r.Get("/api/session/{id}", s.getSession)
	s.r.Get("/api/sigma/{sid}", s.getSigma)
	s.r.Handle("/metrics", promhttp.Handler())
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.r,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Infof("API stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(started))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) date(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return s.today(), true
	}
	if err := layout.ValidDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return date, true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	sessions, err := s.Sessions(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": date, "sessions": sessions})
}

// Sessions summarizes the enriched records of a date, highest risk first,
// then by sensor and session id. A missing day yields an empty list.
func (s *Server) Sessions(date string) ([]SessionSummary, error) {
	files, err := s.layout.EnrichedFiles(date)
	if err != nil {
		if errors.Is(err, layout.ErrDayNotFound) {
			return []SessionSummary{}, nil
		}
		return nil, err
	}

	out := make([]SessionSummary, 0, len(files))
	for _, path := range files {
		var doc models.Raw
		if err := jsonfile.Read(path, &doc); err != nil {
			logger.Warnf("Skipping unreadable session file %s: %v", path, err)
			continue
		}
		out = append(out, summarize(doc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := numeric(out[i].RiskScore), numeric(out[j].RiskScore)
		if ri != rj {
			return ri > rj
		}
		if out[i].Sensor != out[j].Sensor {
			return out[i].Sensor < out[j].Sensor
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

func summarize(doc models.Raw) SessionSummary {
	value := func(path string) interface{} {
		v, _ := doc.Path(path)
		return v
	}
	summary := doc.String("summary")
	if len([]rune(summary)) > shortSummaryChars {
		summary = string([]rune(summary)[:shortSummaryChars-3]) + "..."
	}
	return SessionSummary{
		SessionID:    doc.String("session_id"),
		Sensor:       doc.String("sensor"),
		AttackIntent: value("attack_intent"),
		ShortSummary: summary,
		RiskScore:    value("risk_score"),
		Confidence:   value("confidence"),
		SrcIP:        value("key_indicators.src_ip"),
		DestIP:       value("key_indicators.dest_ip"),
		StartTime:    value("timestamp_range.start"),
		EndTime:      value("timestamp_range.end"),
	}
}

func numeric(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	date, ok := s.date(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var doc json.RawMessage
	if err := jsonfile.Read(s.layout.EnrichedFile(date, id), &doc); err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (s *Server) getSigma(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeError(w, http.StatusServiceUnavailable, "rule store not configured")
		return
	}
	sid := chi.URLParam(r, "sid")
	doc, err := s.rules.Get(r.Context(), corpus.Sigma, sid)
	if err != nil {
		if errors.Is(err, similarity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sigma rule not found")
			return
		}
		logger.Errorf("Sigma lookup %s failed: %v", sid, err)
		writeError(w, http.StatusBadGateway, "rule store unavailable")
		return
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]interface{}{}
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
