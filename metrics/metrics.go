package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

var (
	// Research sessions by outcome (completed, failed, cancelled)
	Sessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_sessions_total",
			Help: "Total number of research sessions by outcome",
		},
		[]string{"outcome"},
	)

	// Session duration
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_session_duration_seconds",
			Help:    "Duration of research sessions in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Search rounds
	Rounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_rounds_total",
			Help: "Total number of search rounds dispatched",
		},
	)

	// Queries dispatched
	QueriesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_queries_dispatched_total",
			Help: "Total number of search queries dispatched",
		},
	)

	// Failed search tasks
	SearchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_search_failures_total",
			Help: "Total number of search tasks that failed",
		},
	)

	// Tool calls by tool and outcome
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_tool_calls_total",
			Help: "Total number of tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	// Model calls by role and outcome
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_llm_calls_total",
			Help: "Total number of model calls by research role and outcome",
		},
		[]string{"role", "outcome"},
	)

	// Model call latency by role
	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepresearch_llm_call_duration_seconds",
			Help:    "Duration of model calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)
)

// RecordSession records a finished session.
func RecordSession(outcome string, elapsed time.Duration) {
	Sessions.WithLabelValues(outcome).Inc()
	SessionDuration.Observe(elapsed.Seconds())
}

// RecordRound records a dispatched round of queries.
func RecordRound(queries int) {
	Rounds.Inc()
	QueriesDispatched.Add(float64(queries))
}

// RecordSearchFailure records one failed search task.
func RecordSearchFailure() {
	SearchFailures.Inc()
}

// RecordToolCall records a tool invocation.
func RecordToolCall(tool string, err error) {
	ToolCalls.WithLabelValues(tool, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// LLMCallRecorder is a middleware that records model call counts and latency.
type LLMCallRecorder struct{}

// NewLLMCallRecorder creates the middleware.
func NewLLMCallRecorder() *LLMCallRecorder {
	return &LLMCallRecorder{}
}

// Name returns the middleware name
func (m *LLMCallRecorder) Name() string {
	return "LLMCallRecorder"
}

// Execute times the downstream call.
func (m *LLMCallRecorder) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	err := next(ctx)
	role := ctx.Role
	if role == "" {
		role = "unknown"
	}
	LLMCalls.WithLabelValues(role, outcome(err)).Inc()
	LLMLatency.WithLabelValues(role).Observe(time.Since(start).Seconds())
	return err
}
