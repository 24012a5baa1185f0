package research

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/metrics"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// stubLLM answers with reply(call index, request) and records requests.
type stubLLM struct {
	mu       sync.Mutex
	reply    func(n int, req *agent.GenerateRequest) (*message.Message, error)
	requests []*agent.GenerateRequest
}

func (s *stubLLM) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests) - 1
	s.mu.Unlock()
	msg, err := s.reply(n, req)
	if err != nil {
		return nil, err
	}
	return &agent.GenerateResponse{Message: msg}, nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *stubLLM) request(i int) *agent.GenerateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// replies returns the i-th content on call i and repeats the last one.
func replies(contents ...string) *stubLLM {
	return &stubLLM{reply: func(n int, _ *agent.GenerateRequest) (*message.Message, error) {
		if n >= len(contents) {
			n = len(contents) - 1
		}
		return message.NewMessage(message.RoleAssistant, contents[n]), nil
	}}
}

func failing(err error) *stubLLM {
	return &stubLLM{reply: func(int, *agent.GenerateRequest) (*message.Message, error) {
		return nil, err
	}}
}

func queryReply(queries ...string) string {
	return fmt.Sprintf(`{"query": [%s], "rationale": "because"}`, quoteAll(queries))
}

func reflectionReply(sufficient bool, followUps ...string) string {
	return fmt.Sprintf(`{"is_sufficient": %t, "knowledge_gap": "gap", "follow_up_queries": [%s]}`, sufficient, quoteAll(followUps))
}

func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}

// searchBackend is a web_search tool citing "https://src.example/<query>".
type searchBackend struct {
	mu      sync.Mutex
	queries []string
	fail    func(query string) error
}

func (b *searchBackend) registry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	err := reg.Register(&tool.Tool{
		Name:        "web_search",
		Description: "search the web",
		Parameters:  []tool.Parameter{{Name: "query", Type: "string", Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
			q := tool.StringArg(args, "query")
			b.mu.Lock()
			b.queries = append(b.queries, q)
			b.mu.Unlock()
			if b.fail != nil {
				if err := b.fail(q); err != nil {
					return nil, err
				}
			}
			return &tool.Result{
				Text:       "facts about " + q,
				References: []tool.Reference{{Title: q, URL: "https://src.example/" + q}},
			}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func (b *searchBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...)
}

type fixture struct {
	gen, search, reflect, answer *stubLLM
	backend                      *searchBackend
}

func newFixture() *fixture {
	return &fixture{
		gen:     replies(queryReply("alpha")),
		search:  replies("unused"),
		reflect: replies(reflectionReply(true)),
		answer:  replies("answer"),
		backend: &searchBackend{},
	}
}

func (f *fixture) researcher(t *testing.T, opts ...Option) *Researcher {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time {
		return time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	})}, opts...)
	r, err := New(Clients{
		QueryGenerator: f.gen,
		Searcher:       f.search,
		Reflection:     f.reflect,
		Answer:         f.answer,
	}, f.backend.registry(t), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func shortRef(batch, ordinal int) string {
	return fmt.Sprintf("%s/%d-%d", citation.DefaultScheme, batch, ordinal)
}

func TestRunFinalizesWhenSufficient(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("alpha", "beta"))
	f.answer = replies("Alpha grew [alpha](" + shortRef(0, 0) + ").")

	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "How did alpha and beta do?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.LoopCount != 1 || resp.RanQueryCount != 2 {
		t.Fatalf("loop=%d ran=%d, want 1 and 2", resp.LoopCount, resp.RanQueryCount)
	}
	if resp.Answer != "Alpha grew [alpha](https://src.example/alpha)." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Value != "https://src.example/alpha" {
		t.Fatalf("used sources = %+v", resp.Sources)
	}
	if len(resp.Records) != 2 || resp.Records[0].QueryID != 0 || resp.Records[1].QueryID != 1 {
		t.Fatalf("records not merged in query order: %+v", resp.Records)
	}
	if resp.SessionID == "" || resp.Rationale != "because" {
		t.Fatalf("missing session metadata: %+v", resp)
	}
	if f.reflect.calls() != 1 || f.answer.calls() != 1 {
		t.Fatalf("reflect=%d answer=%d calls", f.reflect.calls(), f.answer.calls())
	}
}

func TestSingleFacetTopicRunsOneQuery(t *testing.T) {
	f := newFixture()
	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "What is alpha?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Queries) != 1 || resp.Queries[0].ID != 0 {
		t.Fatalf("queries = %+v", resp.Queries)
	}
	if got := f.backend.seen(); len(got) != 1 || got[0] != "alpha" {
		t.Fatalf("searched %v", got)
	}
}

func TestGeneratedQueriesAreCapped(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("a", "b", "b", "c", "d"))
	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", InitialQueryCount: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.RanQueryCount != 3 {
		t.Fatalf("ran %d queries, want 3", resp.RanQueryCount)
	}
	want := []string{"a", "b", "c"}
	for i, q := range resp.Queries {
		if q.Text != want[i] {
			t.Fatalf("query %d = %q, want %q", i, q.Text, want[i])
		}
	}
	if !strings.Contains(f.gen.request(0).Messages[0].Content, "Don't produce more than 3 queries") {
		t.Fatalf("query count missing from prompt")
	}
}

func TestMaxLoopsOneFinalizesAfterFirstReflection(t *testing.T) {
	f := newFixture()
	f.reflect = replies(reflectionReply(false, "more about alpha"))

	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", MaxLoops: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.LoopCount != 1 || resp.RanQueryCount != 1 {
		t.Fatalf("loop=%d ran=%d", resp.LoopCount, resp.RanQueryCount)
	}
	if got := f.backend.seen(); len(got) != 1 {
		t.Fatalf("expected a single search round, searched %v", got)
	}
	if resp.KnowledgeGap != "gap" {
		t.Fatalf("knowledge gap = %q", resp.KnowledgeGap)
	}
}

func TestFollowUpIDsContinueFromRanQueryCount(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("a", "b", "c"))
	f.reflect = replies(reflectionReply(false, "d", "e"), reflectionReply(true))

	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", MaxLoops: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.RanQueryCount != 5 || resp.LoopCount != 2 {
		t.Fatalf("ran=%d loop=%d", resp.RanQueryCount, resp.LoopCount)
	}
	for i, q := range resp.Queries {
		if q.ID != i {
			t.Fatalf("query %q has id %d, want %d", q.Text, q.ID, i)
		}
	}
	if resp.Queries[3].Text != "d" || resp.Queries[4].Text != "e" {
		t.Fatalf("follow-ups = %+v", resp.Queries[3:])
	}
	last := resp.Records[len(resp.Records)-1]
	if last.QueryID != 4 || last.Round != 1 {
		t.Fatalf("last record = %+v", last)
	}
	if !strings.Contains(last.Text, shortRef(4, 0)) {
		t.Fatalf("follow-up batch should cite with its own id: %q", last.Text)
	}
}

func TestLoopCountBoundedByMaxLoops(t *testing.T) {
	for maxLoops := 1; maxLoops <= 4; maxLoops++ {
		f := newFixture()
		f.gen = replies(queryReply("a", "b"))
		f.reflect = replies(reflectionReply(false, "x", "y"))

		resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", MaxLoops: maxLoops})
		if err != nil {
			t.Fatalf("max_loops=%d: %v", maxLoops, err)
		}
		if resp.LoopCount != maxLoops {
			t.Errorf("max_loops=%d: loop_count=%d", maxLoops, resp.LoopCount)
		}
		if want := 2 + 2*(maxLoops-1); resp.RanQueryCount != want || len(f.backend.seen()) != want {
			t.Errorf("max_loops=%d: ran=%d searched=%d want %d", maxLoops, resp.RanQueryCount, len(f.backend.seen()), want)
		}
	}
}

func TestInsufficientWithoutFollowUpsFinalizes(t *testing.T) {
	f := newFixture()
	f.reflect = replies(reflectionReply(false))
	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", MaxLoops: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.LoopCount != 1 || f.answer.calls() != 1 {
		t.Fatalf("loop=%d answer calls=%d", resp.LoopCount, f.answer.calls())
	}
}

func TestUnreferencedSourcesAreDropped(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("a", "b"))
	f.answer = replies("Only b: " + shortRef(1, 0))

	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Value != "https://src.example/b" {
		t.Fatalf("used sources = %+v", resp.Sources)
	}
	if resp.Answer != "Only b: https://src.example/b" {
		t.Fatalf("answer = %q", resp.Answer)
	}
}

func TestFailedSearchDegradesRecord(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("good", "bad"))
	f.backend.fail = func(q string) error {
		if q == "bad" {
			return fmt.Errorf("backend down")
		}
		return nil
	}

	resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	bad := resp.Records[1]
	if !bad.Failed || bad.Text != "" || !strings.Contains(bad.Error, "backend down") {
		t.Fatalf("bad record = %+v", bad)
	}
	prompt := f.reflect.request(0).Messages[0].Content
	if !strings.Contains(prompt, "facts about good") || strings.Contains(prompt, "backend down") {
		t.Fatalf("reflection prompt should carry only successful summaries:\n%s", prompt)
	}
}

func TestAllSearchesFailingIsFatal(t *testing.T) {
	f := newFixture()
	f.gen = replies(queryReply("a", "b"))
	f.backend.fail = func(string) error { return fmt.Errorf("quota") }

	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	var stepErr *errors.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if stepErr.Step != errors.StepSearch || stepErr.QueryID != 0 {
		t.Fatalf("step=%s id=%d", stepErr.Step, stepErr.QueryID)
	}
	if f.reflect.calls() != 0 {
		t.Fatal("reflection must not run after a failed round")
	}
}

func TestMalformedGeneratorOutputIsFatal(t *testing.T) {
	f := newFixture()
	f.gen = replies("I cannot answer in JSON")

	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	var stepErr *errors.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != errors.StepQueryGeneration {
		t.Fatalf("expected query generation error, got %v", err)
	}
	if !errors.Is(err, errors.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
	if len(f.backend.seen()) != 0 {
		t.Fatal("no search may run without queries")
	}
}

func TestNilMessageIsInvalidInput(t *testing.T) {
	f := newFixture()
	_, err := f.researcher(t).Run(context.Background(), Request{Messages: []*message.Message{nil}})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.gen.calls() != 0 {
		t.Fatal("no model call expected for an empty conversation")
	}
}

func TestEmptyQueryListIsFatal(t *testing.T) {
	f := newFixture()
	f.gen = replies(`{"query": [], "rationale": "nothing"}`)
	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	if !errors.Is(err, errors.ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestMalformedReflectionIsFatal(t *testing.T) {
	cases := map[string]string{
		"wrong type":      `{"is_sufficient": "maybe"}`,
		"null":            `null`,
		"empty object":    `{}`,
		"missing verdict": `{"knowledge_gap": "x"}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.reflect = replies(reply)
			resp, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
			var stepErr *errors.StepError
			if !errors.As(err, &stepErr) || stepErr.Step != errors.StepReflection {
				t.Fatalf("expected reflection error, got %v", err)
			}
			if !errors.Is(err, errors.ErrMalformedOutput) {
				t.Fatalf("expected ErrMalformedOutput, got %v", err)
			}
			if resp != nil {
				t.Fatalf("no response expected, got %+v", resp)
			}
		})
	}
}

func TestAnswerFailureNamesStep(t *testing.T) {
	f := newFixture()
	f.answer = failing(fmt.Errorf("overloaded"))
	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q"})
	var stepErr *errors.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != errors.StepAnswer {
		t.Fatalf("expected answer error, got %v", err)
	}
}

func TestCancelledRoundIsDiscarded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture()
	f.gen = replies(queryReply("a", "b"))
	f.backend.fail = func(q string) error {
		cancel()
		return nil
	}

	_, err := f.researcher(t).Run(ctx, Request{InitialMessage: "q"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.reflect.calls() != 0 {
		t.Fatal("a cancelled round must not reach reflection")
	}
}

func TestReasoningModelOnlyForReflectionAndAnswer(t *testing.T) {
	f := newFixture()
	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "q", ReasoningModel: "deep-model"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.gen.request(0).Model; got != "" {
		t.Fatalf("generator model = %q", got)
	}
	if f.reflect.request(0).Model != "deep-model" || f.answer.request(0).Model != "deep-model" {
		t.Fatal("reasoning model not applied")
	}
}

func TestDefaultReasoningModelYieldsToRequest(t *testing.T) {
	f := newFixture()
	r := f.researcher(t, WithReasoningModel("default-deep"))
	if _, err := r.Run(context.Background(), Request{InitialMessage: "q"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.reflect.request(0).Model; got != "default-deep" {
		t.Fatalf("reflection model = %q, want default-deep", got)
	}

	f = newFixture()
	r = f.researcher(t, WithReasoningModel("default-deep"))
	if _, err := r.Run(context.Background(), Request{InitialMessage: "q", ReasoningModel: "override"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.answer.request(0).Model; got != "override" {
		t.Fatalf("answer model = %q, want override", got)
	}
}

func TestPromptsCarryDateAndTopic(t *testing.T) {
	f := newFixture()
	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "Who won the 2024 cup?"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	content := f.gen.request(0).Messages[0].Content
	if !strings.Contains(content, "March 07, 2025") || !strings.Contains(content, "Who won the 2024 cup?") {
		t.Fatalf("generator prompt:\n%s", content)
	}
}

func TestAgenticSearchReportsToolErrorsInBand(t *testing.T) {
	f := newFixture()
	f.search = &stubLLM{reply: func(n int, req *agent.GenerateRequest) (*message.Message, error) {
		switch n {
		case 0:
			return message.NewToolCallMessage("", []message.ToolCall{{ID: "c1", Name: "missing_tool", Args: map[string]any{}}}), nil
		case 1:
			return message.NewToolCallMessage("", []message.ToolCall{{ID: "c2", Name: "web_search", Args: map[string]any{"query": "alpha"}}}), nil
		default:
			return message.NewMessage(message.RoleAssistant, "Alpha summary ["+"alpha]("+shortRef(0, 0)+")"), nil
		}
	}}
	f.answer = replies("See " + shortRef(0, 0))
	failed := metrics.ToolCalls.WithLabelValues("missing_tool", "error")
	before := testutil.ToFloat64(failed)

	resp, err := f.researcher(t, WithMode(ModeAgentic)).Run(context.Background(), Request{InitialMessage: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Fatalf("failed tool calls counted = %v, want 1", got)
	}
	second := f.search.request(1).Messages
	last := second[len(second)-1]
	if last.Role != message.RoleTool || !strings.Contains(last.Content, "Error executing tool missing_tool") {
		t.Fatalf("tool error not reported in-band: %+v", last)
	}
	if len(f.search.request(0).Tools) == 0 {
		t.Fatal("searcher should be offered the registered tools")
	}
	if resp.Records[0].Text != "Alpha summary [alpha]("+shortRef(0, 0)+")" {
		t.Fatalf("record text = %q", resp.Records[0].Text)
	}
	if resp.Answer != "See https://src.example/alpha" || len(resp.Sources) != 1 {
		t.Fatalf("answer=%q sources=%+v", resp.Answer, resp.Sources)
	}
}

func TestAgenticSearchIsBounded(t *testing.T) {
	f := newFixture()
	f.search = &stubLLM{reply: func(n int, req *agent.GenerateRequest) (*message.Message, error) {
		if len(req.Tools) == 0 {
			return message.NewMessage(message.RoleAssistant, ""), nil
		}
		return message.NewToolCallMessage("", []message.ToolCall{{ID: fmt.Sprint(n), Name: "web_search", Args: map[string]any{"query": "loop"}}}), nil
	}}

	resp, err := f.researcher(t, WithMode(ModeAgentic), WithMaxToolTurns(2)).Run(context.Background(), Request{InitialMessage: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.search.calls() != 3 {
		t.Fatalf("searcher calls = %d, want 2 tool turns plus a final turn", f.search.calls())
	}
	if !strings.Contains(resp.Records[0].Text, "facts about loop") {
		t.Fatalf("empty final turn should fall back to tool outputs, got %q", resp.Records[0].Text)
	}
}

func TestConversationTopic(t *testing.T) {
	f := newFixture()
	msgs := []*message.Message{
		message.NewMessage(message.RoleUser, "Tell me about alpha"),
		message.NewMessage(message.RoleAssistant, "Alpha is a letter"),
		message.NewMessage(message.RoleUser, "And its history?"),
	}
	resp, err := f.researcher(t).Run(context.Background(), Request{Messages: msgs})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "User: Tell me about alpha\nAssistant: Alpha is a letter\nUser: And its history?"
	if resp.Topic != want {
		t.Fatalf("topic = %q", resp.Topic)
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	f := newFixture()
	_, err := f.researcher(t).Run(context.Background(), Request{InitialMessage: "   "})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	f := newFixture()
	if _, err := New(Clients{}, f.backend.registry(t)); !errors.Is(err, errors.ErrMissingConfig) {
		t.Fatalf("missing clients: %v", err)
	}
	if _, err := New(Clients{Default: f.gen}, tool.NewRegistry()); !errors.Is(err, errors.ErrMissingConfig) {
		t.Fatalf("missing search tool: %v", err)
	}
	if _, err := New(Clients{Default: f.gen}, tool.NewRegistry(), WithMode(ModeAgentic)); err != nil {
		t.Fatalf("agentic mode needs no fixed tool: %v", err)
	}
}

func TestPromptDirOverridesTemplates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, PromptQueryWriter+".tmpl"), []byte("custom {{.NumberQueries}} for {{.Topic}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture()
	if _, err := f.researcher(t, WithPromptDir(dir)).Run(context.Background(), Request{InitialMessage: "alpha", InitialQueryCount: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.gen.request(0).Messages[0].Content; got != "custom 2 for alpha" {
		t.Fatalf("prompt = %q", got)
	}
}

type prefixTokenizer struct{}

func (prefixTokenizer) Truncate(text string, n int) string {
	if len(text) > n {
		return text[:n]
	}
	return text
}

func TestSummaryTokenBudget(t *testing.T) {
	f := newFixture()
	_, err := f.researcher(t, WithSummaryTokenBudget(prefixTokenizer{}, 5)).Run(context.Background(), Request{InitialMessage: "q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	prompt := f.reflect.request(0).Messages[0].Content
	if !strings.HasSuffix(prompt, "facts") {
		t.Fatalf("summary not trimmed:\n%s", prompt)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Decision
	}{
		{"sufficient", State{IsSufficient: true, LoopCount: 1, MaxLoops: 3, FollowUps: []string{"x"}}, Finalize{Reason: ReasonSufficient}},
		{"budget", State{LoopCount: 2, MaxLoops: 2, FollowUps: []string{"x"}}, Finalize{Reason: ReasonLoopBudget}},
		{"no follow-ups", State{LoopCount: 1, MaxLoops: 2}, Finalize{Reason: ReasonNoFollowUps}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decide(&tt.state); got != tt.want {
				t.Fatalf("decide = %#v, want %#v", got, tt.want)
			}
		})
	}

	d, ok := decide(&State{LoopCount: 1, MaxLoops: 2, RanQueryCount: 3, FollowUps: []string{"x", "y"}}).(Dispatch)
	if !ok {
		t.Fatal("expected Dispatch")
	}
	if len(d.Queries) != 2 || d.Queries[0].ID != 3 || d.Queries[1].ID != 4 {
		t.Fatalf("dispatch = %+v", d.Queries)
	}
}
