// Package server exposes research sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/archive"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/research"
)

const maxBodyBytes = 1 << 20

// Researcher runs one research session.
type Researcher interface {
	Run(ctx context.Context, req research.Request) (*research.Response, error)
}

// Server serves the research API. A nil archive disables report storage
// and the report endpoints answer 404.
type Server struct {
	researcher Researcher
	archive    archive.Store
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Server. timeout bounds a single research request; zero
// leaves it to the client connection.
func New(researcher Researcher, store archive.Store, timeout time.Duration) *Server {
	return &Server{
		researcher: researcher,
		archive:    store,
		timeout:    timeout,
		logger:     logging.WithComponent("server"),
		now:        time.Now,
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/research", s.createResearch)
	r.Get("/reports", s.listReports)
	r.Get("/reports/{id}", s.getReport)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type messageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// researchInput accepts the question as "question" or "initial_message".
type researchInput struct {
	Question          string         `json:"question"`
	InitialMessage    string         `json:"initial_message"`
	Messages          []messageInput `json:"messages"`
	InitialQueryCount int            `json:"initial_query_count"`
	MaxLoops          int            `json:"max_loops"`
	ReasoningModel    string         `json:"reasoning_model"`
}

func (in researchInput) request() research.Request {
	question := in.Question
	if strings.TrimSpace(question) == "" {
		question = in.InitialMessage
	}
	req := research.Request{
		InitialMessage:    question,
		InitialQueryCount: in.InitialQueryCount,
		MaxLoops:          in.MaxLoops,
		ReasoningModel:    in.ReasoningModel,
	}
	for _, m := range in.Messages {
		role := message.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		if role == "" {
			role = message.RoleUser
		}
		req.Messages = append(req.Messages, message.NewMessage(role, m.Content))
	}
	return req
}

type usedSource struct {
	Label     string `json:"label"`
	Reference string `json:"reference"`
}

// researchOutput is the session response plus used_sources, the answer's
// sources as {label, reference} pairs with canonical references.
type researchOutput struct {
	*research.Response
	UsedSources []usedSource `json:"used_sources"`
}

func newResearchOutput(resp *research.Response) researchOutput {
	out := researchOutput{Response: resp, UsedSources: []usedSource{}}
	for _, src := range resp.Sources {
		out.UsedSources = append(out.UsedSources, usedSource{Label: src.Label, Reference: src.Value})
	}
	return out
}

func (s *Server) createResearch(w http.ResponseWriter, r *http.Request) {
	var in researchInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.researcher.Run(ctx, in.request())
	if err != nil {
		s.writeResearchError(w, err)
		return
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, archive.NewReport(resp, s.now())); err != nil {
			s.logger.Warn("failed to archive report", "session_id", resp.SessionID, "error", err)
		}
	}
	writeJSONStatus(w, newResearchOutput(resp), http.StatusOK)
}

func (s *Server) writeResearchError(w http.ResponseWriter, err error) {
	var stepErr *errors.StepError
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		w.WriteHeader(499)
	case errors.As(err, &stepErr):
		s.logger.Error("research failed", "step", stepErr.Step, "error", err)
		writeJSONStatus(w, map[string]any{"error": err.Error(), "step": stepErr.Step}, http.StatusBadGateway)
	default:
		s.logger.Error("research failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "report archive is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	report, err := s.archive.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, report, http.StatusOK)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "report archive is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	reports, err := s.archive.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, map[string]any{"reports": reports}, http.StatusOK)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, map[string]string{"error": msg}, status)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}
