// Package web exposes the services over a small JSON API plus the
// Prometheus metrics endpoint. The surface exists for demos and
// grading, not as a hardened public gateway.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/internal/db"
	"github.com/pharmaai/pharmadb/internal/service"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// Server routes API requests to the services.
type Server struct {
	pool    *db.Pool
	daos    *dao.DAOs
	tx      *service.TxService
	queries *service.QueryService
	log     *slog.Logger
}

// NewServer wires the API against the given pool and services.
func NewServer(pool *db.Pool, daos *dao.DAOs, tx *service.TxService, queries *service.QueryService, log *slog.Logger) *Server {
	return &Server{pool: pool, daos: daos, tx: tx, queries: queries, log: log.With("component", "web")}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/inspectors", s.handleListInspectors)
	mux.HandleFunc("GET /api/inspectors/{id}", s.handleInspectorDetail)
	mux.HandleFunc("GET /api/inspectors/{id}/experiments", s.handleInspectorExperiments)
	mux.HandleFunc("GET /api/inspectors/{id}/conversations", s.handleInspectorConversations)

	mux.HandleFunc("POST /api/experiments", s.handleCreateExperiment)
	mux.HandleFunc("GET /api/experiments/{id}", s.handleExperimentDetail)

	mux.HandleFunc("GET /api/conversations", s.handleSearchConversations)
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleAppendMessages)
	mux.HandleFunc("GET /api/messages/search", s.handleSearchMessages)

	mux.HandleFunc("GET /api/labs/stats", s.handleLabStats)
	mux.HandleFunc("POST /api/labs/transfer-access", s.handleTransferAccess)

	mux.HandleFunc("GET /api/items/{id}/summary", s.handleItemSummary)

	mux.HandleFunc("GET /api/configs", s.handleListConfigs)
	mux.HandleFunc("GET /api/configs/{key}", s.handleGetConfig)
	mux.HandleFunc("PUT /api/configs/{key}", s.handleUpdateConfig)

	return s.logRequests(mux)
}

// Serve runs the API until ctx is canceled, then shuts down with a
// short grace period.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListInspectors(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r, 100)
	var (
		recs []types.Record
		err  error
	)
	if dept := r.URL.Query().Get("department"); dept != "" {
		recs, err = s.daos.Inspectors.FindByDepartment(r.Context(), dept, opts)
	} else {
		recs, err = s.daos.Inspectors.Active(r.Context(), opts)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleInspectorDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.daos.Inspectors.Detail(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleInspectorExperiments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	history, err := s.queries.InspectorExperimentHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleInspectorConversations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, to := timeRange(r)
	recs, err := s.queries.InspectorConversationsWithItems(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

type createExperimentRequest struct {
	Experiment types.Record   `json:"experiment"`
	DataPoints []types.Record `json:"data_points"`
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var req createExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if len(req.Experiment) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "experiment is required"})
		return
	}
	id, err := s.tx.CreateExperimentWithDataPoints(r.Context(), req.Experiment, req.DataPoints)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"experiment_id": id})
}

func (s *Server) handleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.queries.ExperimentWithDetails(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSearchConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.ConversationSearch{Keywords: q.Get("keywords")}
	if v := q.Get("inspector_id"); v != "" {
		filter.InspectorID, _ = strconv.ParseInt(v, 10, 64)
	}
	filter.From, filter.To = timeRange(r)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	recs, total, err := s.queries.SearchConversations(r.Context(), filter, page, perPage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"total": total, "conversations": recs})
}

type appendMessagesRequest struct {
	Messages []types.Record `json:"messages"`
}

func (s *Server) handleAppendMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req appendMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if len(req.Messages) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages are required"})
		return
	}
	ids, err := s.tx.BatchAppendMessages(r.Context(), id, req.Messages)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"message_ids": ids})
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.queries.SearchMessagesByContent(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleLabStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.LaboratoryExperimentStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type transferAccessRequest struct {
	FromInspectorID int64   `json:"from_inspector_id"`
	ToInspectorID   int64   `json:"to_inspector_id"`
	LabIDs          []int64 `json:"lab_ids"`
}

func (s *Server) handleTransferAccess(w http.ResponseWriter, r *http.Request) {
	var req transferAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if req.FromInspectorID == 0 || req.ToInspectorID == 0 || len(req.LabIDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from_inspector_id, to_inspector_id, and lab_ids are required"})
		return
	}
	result, err := s.tx.TransferLabAccess(r.Context(), req.FromInspectorID, req.ToInspectorID, req.LabIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleItemSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	summary, err := s.queries.ItemExperimentsSummary(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	var (
		recs []types.Record
		err  error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		recs, err = s.daos.Configs.ByCategory(r.Context(), category)
	} else {
		recs, err = s.daos.Configs.GetAll(r.Context(), types.ListOptions{OrderBy: "config_key ASC"})
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := s.daos.Configs.Value(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

type updateConfigRequest struct {
	Value     string `json:"value"`
	UpdatedBy string `json:"updated_by"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if req.Value == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value is required"})
		return
	}
	updated, err := s.daos.Configs.Set(r.Context(), key, req.Value, req.UpdatedBy)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !updated {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "config is not editable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response failed", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses without leaking
// SQL detail to clients.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case db.IsUniqueViolation(err):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate record"})
	case errors.Is(err, types.ErrUnknownColumn), errors.Is(err, types.ErrInvalidOrderBy):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
	default:
		s.log.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, `{"error":"invalid id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func listOptions(r *http.Request, defaultLimit int) types.ListOptions {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	return types.ListOptions{Limit: limit, Offset: offset}
}

func timeRange(r *http.Request) (time.Time, time.Time) {
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, _ = time.Parse("2006-01-02", v)
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t.Add(24*time.Hour - time.Second)
		}
	}
	return from, to
}
