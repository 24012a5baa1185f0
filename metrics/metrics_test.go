package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

func TestRecordRound(t *testing.T) {
	rounds := testutil.ToFloat64(Rounds)
	queries := testutil.ToFloat64(QueriesDispatched)

	RecordRound(3)

	assert.Equal(t, rounds+1, testutil.ToFloat64(Rounds))
	assert.Equal(t, queries+3, testutil.ToFloat64(QueriesDispatched))
}

func TestRecordToolCall(t *testing.T) {
	before := testutil.ToFloat64(ToolCalls.WithLabelValues("web_search", "error"))
	RecordToolCall("web_search", errors.New("timeout"))
	assert.Equal(t, before+1, testutil.ToFloat64(ToolCalls.WithLabelValues("web_search", "error")))
}

func TestRecordSession(t *testing.T) {
	before := testutil.ToFloat64(Sessions.WithLabelValues("completed"))
	RecordSession("completed", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(Sessions.WithLabelValues("completed")))
}

func TestLLMCallRecorder(t *testing.T) {
	mw := NewLLMCallRecorder()
	ctx := middleware.NewContext(context.Background())
	ctx.Role = "reflection"

	before := testutil.ToFloat64(LLMCalls.WithLabelValues("reflection", "ok"))
	err := mw.Execute(ctx, func(*middleware.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(LLMCalls.WithLabelValues("reflection", "ok")))

	boom := errors.New("boom")
	err = mw.Execute(middleware.NewContext(context.Background()), func(*middleware.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(LLMCalls.WithLabelValues("unknown", "error")))
}
