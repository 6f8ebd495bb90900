// Package api serves reconciled reports and override edits over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-hub/internal/model"
	"github.com/sells-group/campaign-hub/internal/present"
	"github.com/sells-group/campaign-hub/internal/reconcile"
	"github.com/sells-group/campaign-hub/internal/store"
)

// Reconciler is the reconciliation service the API exposes.
type Reconciler interface {
	Campaign(ctx context.Context, campaignID int64) (*model.Report, error)
	ApplyOverride(ctx context.Context, campaignID int64, date, metric, value string) (*model.OverrideResult, error)
	CellValue(ctx context.Context, campaignID int64, date, metric string) (string, error)
}

// SnapshotCache holds cached baseline snapshots.
type SnapshotCache interface {
	Invalidate(campaignID int64)
	Flush()
	Len() int
}

// ImportLister lists recent spreadsheet imports.
type ImportLister interface {
	ListImports(ctx context.Context, limit int) ([]store.ImportRecord, error)
}

// Server holds the HTTP handlers. Snapshots and Imports are optional.
type Server struct {
	svc       Reconciler
	snapshots SnapshotCache
	imports   ImportLister
	origins   []string
}

// NewServer creates a Server.
func NewServer(svc Reconciler, snapshots SnapshotCache, imports ImportLister, allowedOrigins []string) *Server {
	return &Server{svc: svc, snapshots: snapshots, imports: imports, origins: allowedOrigins}
}

// Router returns the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", s.handleMetrics)
		r.Get("/imports", s.handleImports)
		r.Delete("/snapshots", s.handleFlush)
		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Get("/report", s.handleReport)
			r.Get("/cells", s.handleCell)
			r.Put("/overrides", s.handleOverride)
			r.Post("/snapshot/invalidate", s.handleInvalidate)
		})
	})
	return r
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"editable": model.EditableMetrics})
}

// handleImports lists recent imports.
// GET /api/imports?limit=N
func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	if s.imports == nil {
		writeError(w, http.StatusNotFound, "imports are not available")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.imports.ListImports(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleReport returns the reconciled report as JSON, or as a text table
// with ?format=text.
// GET /api/campaigns/{campaignID}/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	report, err := s.svc.Campaign(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		present.WriteReport(w, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CellResponse is the edit-prefill payload of one cell.
type CellResponse struct {
	Date   string `json:"date"`
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// handleCell returns the text an editor should be prefilled with.
// GET /api/campaigns/{campaignID}/cells?date=YYYY-MM-DD&metric=name
func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	v, err := s.svc.CellValue(r.Context(), id, q.Get("date"), q.Get("metric"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CellResponse{Date: q.Get("date"), Metric: q.Get("metric"), Value: v})
}

// OverrideRequest is the body of an override edit. An empty value clears
// the override.
type OverrideRequest struct {
	Date   string `json:"date"`
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// OverrideResponse wraps the recomputed date and totals with the display
// text of the edited cell.
type OverrideResponse struct {
	*model.OverrideResult
	Display string `json:"display"`
}

// handleOverride saves one override and returns the recomputed date and
// totals.
// PUT /api/campaigns/{campaignID}/overrides
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.ApplyOverride(r.Context(), id, req.Date, req.Metric, req.Value)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := OverrideResponse{OverrideResult: res, Display: present.Null}
	if res.Daily != nil {
		resp.Display = present.Metric(res.Metric, reconcile.FieldValue(res.Daily, string(res.Metric)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInvalidate drops the cached baseline snapshot after a new export
// lands.
// POST /api/campaigns/{campaignID}/snapshot/invalidate
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if s.snapshots != nil {
		s.snapshots.Invalidate(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFlush drops every cached baseline snapshot and reports how many
// entries were held.
// DELETE /api/snapshots
func (s *Server) handleFlush(w http.ResponseWriter, _ *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot cache is not available")
		return
	}
	n := s.snapshots.Len()
	s.snapshots.Flush()
	zap.L().Info("api: snapshot cache flushed", zap.Int("entries", n))
	writeJSON(w, http.StatusOK, map[string]int{"flushed": n})
}

func campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "campaignID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return 0, false
	}
	return id, true
}

// fail maps service errors to responses: rejected input is a 400, anything
// else a 500 with the detail kept in the log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if reconcile.IsValidation(err) {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	zap.L().Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrComputedMetric):
		return "computed metrics cannot be overridden"
	case errors.Is(err, reconcile.ErrInvalidDate):
		return "invalid date"
	default:
		return "metric is not editable"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
