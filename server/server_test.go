package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/archive"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/research"
)

type stubResearcher struct {
	got research.Request
	err error
}

func (s *stubResearcher) Run(_ context.Context, req research.Request) (*research.Response, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &research.Response{
		SessionID: "sess-1",
		Topic:     req.InitialMessage,
		Answer:    "answer",
		Sources:   []citation.Source{{Label: "go.dev", ShortRef: "https://research.ref/id/0-0", Value: "https://go.dev"}},
		Queries:   []research.Query{{ID: 0, Text: "q"}},
		LoopCount: 1,
	}, nil
}

func newTestServer(r Researcher, store archive.Store) *Server {
	s := New(r, store, time.Minute)
	s.now = func() time.Time { return time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateResearchArchivesReport(t *testing.T) {
	stub := &stubResearcher{}
	store := archive.NewMemoryStore()
	h := newTestServer(stub, store).Router()

	rec := do(t, h, http.MethodPost, "/research",
		`{"question":"What is new in Go?","max_loops":3,"initial_query_count":2,"reasoning_model":"big"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp research.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "What is new in Go?", stub.got.InitialMessage)
	assert.Equal(t, 3, stub.got.MaxLoops)
	assert.Equal(t, 2, stub.got.InitialQueryCount)
	assert.Equal(t, "big", stub.got.ReasoningModel)

	rec = do(t, h, http.MethodGet, "/reports/sess-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report archive.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "answer", report.Answer)
	assert.Equal(t, 2025, report.CreatedAt.Year())

	rec = do(t, h, http.MethodGet, "/reports?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"sess-1"`)
}

func TestCreateResearchSessionFields(t *testing.T) {
	stub := &stubResearcher{}
	h := newTestServer(stub, nil).Router()

	rec := do(t, h, http.MethodPost, "/research", `{"initial_message":"What is new in Go?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "What is new in Go?", stub.got.InitialMessage)

	var out struct {
		Answer      string `json:"answer"`
		UsedSources []struct {
			Label     string `json:"label"`
			Reference string `json:"reference"`
		} `json:"used_sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "answer", out.Answer)
	require.Len(t, out.UsedSources, 1)
	assert.Equal(t, "go.dev", out.UsedSources[0].Label)
	assert.Equal(t, "https://go.dev", out.UsedSources[0].Reference)
}

func TestCreateResearchWithConversation(t *testing.T) {
	stub := &stubResearcher{}
	h := newTestServer(stub, nil).Router()

	rec := do(t, h, http.MethodPost, "/research",
		`{"messages":[{"role":"user","content":"hi"},{"role":"Assistant","content":"hello"},{"content":"compare"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.got.Messages, 3)
	assert.Equal(t, message.RoleAssistant, stub.got.Messages[1].Role)
	assert.Equal(t, message.RoleUser, stub.got.Messages[2].Role)
}

func TestCreateResearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"unknown field", nil, `{"prompt":"x"}`, http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: empty research question", errors.ErrInvalidInput), `{}`, http.StatusBadRequest},
		{"step failure", errors.NewStepError(errors.StepReflection, errors.ErrMalformedOutput), `{"question":"q"}`, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, `{"question":"q"}`, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), `{"question":"q"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&stubResearcher{err: tt.err}, nil).Router()
			rec := do(t, h, http.MethodPost, "/research", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	h := newTestServer(&stubResearcher{err: errors.NewStepError(errors.StepAnswer, errors.New("x"))}, nil).Router()
	rec := do(t, h, http.MethodPost, "/research", `{"question":"q"}`)
	assert.Contains(t, rec.Body.String(), `"step":"answer"`)
}

func TestReports(t *testing.T) {
	h := newTestServer(&stubResearcher{}, archive.NewMemoryStore()).Router()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/reports/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/reports?limit=x", "").Code)

	disabled := newTestServer(&stubResearcher{}, nil).Router()
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/reports/sess-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, disabled, http.MethodGet, "/reports", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&stubResearcher{}, nil).Router()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
