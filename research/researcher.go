package research

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/graph"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/metrics"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/telemetry"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/prompt"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/runner"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// Graph node names. They double as the state names in logs.
const (
	nodeGenerate = "generating"
	nodeSearch   = "searching"
	nodeReflect  = "reflecting"
	nodeRoute    = "routing"
	nodeFinalize = "finalizing"
	nodeDone     = "done"
)

// Model roles, used as the role label of instrumented clients.
const (
	RoleQueryGenerator = "query_generator"
	RoleSearcher       = "searcher"
	RoleReflection     = "reflection"
	RoleAnswer         = "answer"
)

// Clients holds the model client of each research role. Unset roles fall
// back to Default.
type Clients struct {
	Default        agent.LLMClient
	QueryGenerator agent.LLMClient
	Searcher       agent.LLMClient
	Reflection     agent.LLMClient
	Answer         agent.LLMClient
}

func (c Clients) pick(role agent.LLMClient) agent.LLMClient {
	if role != nil {
		return role
	}
	return c.Default
}

// Researcher runs research sessions. It holds no per-session state, so one
// Researcher may run many sessions concurrently; the search pool bound is
// shared between them.
type Researcher struct {
	cfg      *Config
	prompts  *prompt.Manager
	registry *tool.Registry
	pool     *runner.Pool
	logger   *slog.Logger

	generator *queryGenerator
	searcher  *searchExecutor
	reflector *reflector
	answerer  *synthesizer
}

// New builds a Researcher. Every role needs a model client, and direct mode
// needs the search tool to be registered.
func New(clients Clients, registry *tool.Registry, opts ...Option) (*Researcher, error) {
	cfg := applyOptions(defaultConfig(), opts)
	if registry == nil {
		return nil, fmt.Errorf("%w: tool registry", errors.ErrMissingConfig)
	}
	if cfg.Mode == ModeDirect {
		if _, err := registry.Get(cfg.SearchTool); err != nil {
			return nil, fmt.Errorf("%w: search tool %q is not registered", errors.ErrMissingConfig, cfg.SearchTool)
		}
	}

	roles := []struct {
		name   string
		client agent.LLMClient
	}{
		{RoleQueryGenerator, clients.pick(clients.QueryGenerator)},
		{RoleSearcher, clients.pick(clients.Searcher)},
		{RoleReflection, clients.pick(clients.Reflection)},
		{RoleAnswer, clients.pick(clients.Answer)},
	}
	wrapped := make(map[string]agent.LLMClient, len(roles))
	for _, role := range roles {
		if role.client == nil {
			return nil, fmt.Errorf("%w: no model client for %s", errors.ErrMissingConfig, role.name)
		}
		wrapped[role.name] = agent.Instrument(role.client, role.name, middleware.NewChain(cfg.middlewares...))
	}

	prompts, err := newPromptManager(cfg.PromptDir)
	if err != nil {
		return nil, err
	}

	r := &Researcher{
		cfg:      cfg,
		prompts:  prompts,
		registry: registry,
		pool:     runner.New(cfg.Concurrency),
		logger:   logging.WithComponent("researcher").With("name", cfg.Name),
	}
	r.generator = &queryGenerator{llm: wrapped[RoleQueryGenerator], prompts: prompts}
	r.searcher = &searchExecutor{llm: wrapped[RoleSearcher], registry: registry, prompts: prompts, cfg: cfg}
	r.reflector = &reflector{llm: wrapped[RoleReflection], prompts: prompts}
	r.answerer = &synthesizer{llm: wrapped[RoleAnswer], prompts: prompts, scheme: cfg.ShortRefScheme}
	return r, nil
}

// Config returns the effective configuration.
func (r *Researcher) Config() Config {
	return *r.cfg
}

// Run executes one research session to completion. A failure names the
// step that failed through *errors.StepError, except for cancellation which
// returns the context error.
func (r *Researcher) Run(ctx context.Context, req Request) (*Response, error) {
	state, err := r.newState(req)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	logger := r.logger.With("session_id", sessionID)
	started := time.Now()

	ctx, span := telemetry.Start(ctx, "research.session",
		attribute.String("session.id", sessionID),
		attribute.Int("research.max_loops", state.MaxLoops),
		attribute.Int("research.initial_queries", state.InitialQueryCount),
	)
	logger.Info("research session started",
		"topic", logging.Trim(state.Topic, 200),
		"initial_queries", state.InitialQueryCount,
		"max_loops", state.MaxLoops,
	)

	s := &session{Researcher: r, logger: logger, date: currentDate(r.cfg.now)}
	state, err = s.graph(state.MaxLoops).Execute(ctx, state)

	outcome := "completed"
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = "cancelled"
		err = ctx.Err()
	case err != nil:
		outcome = "failed"
		var stepErr *errors.StepError
		if errors.As(err, &stepErr) {
			err = stepErr
		}
	}
	metrics.RecordSession(outcome, time.Since(started))
	telemetry.End(span, err)
	if err != nil {
		logger.Error("research session failed", "error", err, "loop_count", state.LoopCount)
		return nil, err
	}

	logger.Info("research session finished",
		"loop_count", state.LoopCount,
		"ran_query_count", state.RanQueryCount,
		"sources", len(state.UsedSources),
		"duration", time.Since(started),
	)
	return &Response{
		SessionID:     sessionID,
		Topic:         state.Topic,
		Answer:        state.Answer,
		Sources:       state.UsedSources,
		Rationale:     state.Rationale,
		KnowledgeGap:  state.KnowledgeGap,
		Queries:       state.Queries,
		Records:       state.Records,
		LoopCount:     state.LoopCount,
		RanQueryCount: state.RanQueryCount,
	}, nil
}

func (r *Researcher) newState(req Request) (*State, error) {
	msgs := message.CloneMessages(req.Messages)
	if len(msgs) == 0 {
		if strings.TrimSpace(req.InitialMessage) == "" {
			return nil, fmt.Errorf("%w: empty research question", errors.ErrInvalidInput)
		}
		msgs = []*message.Message{message.NewMessage(message.RoleUser, req.InitialMessage)}
	}
	topic := strings.TrimSpace(Topic(msgs))
	if topic == "" {
		return nil, fmt.Errorf("%w: empty research question", errors.ErrInvalidInput)
	}

	st := &State{
		Conversation:      msgs,
		Topic:             topic,
		InitialQueryCount: r.cfg.InitialQueryCount,
		MaxLoops:          r.cfg.MaxLoops,
		ReasoningModel:    r.cfg.ReasoningModel,
	}
	if m := strings.TrimSpace(req.ReasoningModel); m != "" {
		st.ReasoningModel = m
	}
	if req.InitialQueryCount > 0 {
		st.InitialQueryCount = req.InitialQueryCount
	}
	if req.MaxLoops > 0 {
		st.MaxLoops = req.MaxLoops
	}
	return st, nil
}

// decide applies the loop rule after a reflection.
func decide(st *State) Decision {
	switch {
	case st.IsSufficient:
		return Finalize{Reason: ReasonSufficient}
	case st.LoopCount >= st.MaxLoops:
		return Finalize{Reason: ReasonLoopBudget}
	case len(st.FollowUps) == 0:
		return Finalize{Reason: ReasonNoFollowUps}
	}
	return Dispatch{Queries: assignIDs(st.RanQueryCount, st.FollowUps)}
}

func assignIDs(first int, texts []string) []Query {
	out := make([]Query, len(texts))
	for i, text := range texts {
		out[i] = Query{ID: first + i, Text: text}
	}
	return out
}

// session carries what the graph nodes of one Run share.
type session struct {
	*Researcher
	logger *slog.Logger
	date   string
}

func (s *session) graph(maxLoops int) *graph.Graph[*State] {
	return graph.NewBuilder[*State]().
		AddNode(nodeGenerate, graph.NodeTypeStart, s.generate).
		AddNode(nodeSearch, graph.NodeTypeCustom, s.search).
		AddNode(nodeReflect, graph.NodeTypeCustom, s.reflect).
		AddConditionNode(nodeRoute, s.route, map[string]string{
			"dispatch": nodeSearch,
			"finalize": nodeFinalize,
		}).
		AddNode(nodeFinalize, graph.NodeTypeCustom, s.finalize).
		AddNode(nodeDone, graph.NodeTypeEnd, nil).
		AddEdge(nodeGenerate, nodeSearch).
		AddEdge(nodeSearch, nodeReflect).
		AddEdge(nodeReflect, nodeRoute).
		AddEdge(nodeFinalize, nodeDone).
		SetStart(nodeGenerate).
		SetEnd(nodeDone).
		SetMaxVisits(maxLoops + 1).
		SetObserver(func(_ context.Context, node string, visit int) {
			s.logger.Debug("state transition", "state", node, "visit", visit)
		}).
		Build()
}

// dispatch queues queries for the next round. RanQueryCount counts them
// from this point on.
func (s *session) dispatch(st *State, queries []Query) {
	st.PendingQueries = queries
	st.Queries = append(st.Queries, queries...)
	st.RanQueryCount += len(queries)
	for _, q := range queries {
		s.logger.Info("query dispatched", "query_id", q.ID, "query", logging.Trim(q.Text, 120))
	}
}

func (s *session) generate(ctx context.Context, st *State) (*State, error) {
	queries, rationale, err := s.generator.Generate(ctx, st.Topic, s.date, st.InitialQueryCount)
	if err != nil {
		return st, errors.NewStepError(errors.StepQueryGeneration, err)
	}
	st.Rationale = rationale
	s.dispatch(st, assignIDs(0, queries))
	return st, nil
}

// search runs the pending batch as a barrier: every task owns its slot and
// slots are merged in query order once all tasks returned.
func (s *session) search(ctx context.Context, st *State) (*State, error) {
	batch := st.PendingQueries
	round := st.LoopCount
	ctx, span := telemetry.Start(ctx, "research.round",
		attribute.Int("research.round", round),
		attribute.Int("research.queries", len(batch)),
	)
	metrics.RecordRound(len(batch))

	tasks := make([]runner.Task[*searchOutput], len(batch))
	for i, q := range batch {
		tasks[i] = runner.Task[*searchOutput]{
			ID: strconv.Itoa(q.ID),
			Run: func(ctx context.Context) (*searchOutput, error) {
				ctx, span := telemetry.Start(ctx, "research.search", attribute.Int("research.query_id", q.ID))
				out, err := s.searcher.Search(ctx, q, s.date)
				telemetry.End(span, err)
				return out, err
			},
		}
	}
	results := runner.RunParallel(ctx, s.pool, tasks)

	if err := ctx.Err(); err != nil {
		s.logger.Warn("search round cancelled, discarding results", "round", round)
		telemetry.End(span, err)
		return st, err
	}

	records := make([]SearchRecord, len(batch))
	var sources []citation.Source
	var firstErr *errors.StepError
	failed := 0
	for i, res := range results {
		q := batch[i]
		records[i] = SearchRecord{QueryID: q.ID, Query: q.Text, Round: round}
		if res.Error == nil && res.Output == nil {
			res.Error = fmt.Errorf("no result")
		}
		if res.Error != nil {
			failed++
			records[i].Failed = true
			records[i].Error = res.Error.Error()
			metrics.RecordSearchFailure()
			s.logger.Warn("search failed", "query_id", q.ID, "error", res.Error)
			if firstErr == nil {
				firstErr = errors.NewSearchError(q.ID, res.Error)
			}
			continue
		}
		records[i].Text = res.Output.Text
		records[i].Sources = res.Output.Sources
		sources = append(sources, res.Output.Sources...)
	}
	if failed == len(batch) && firstErr != nil {
		telemetry.End(span, firstErr)
		return st, firstErr
	}

	st.Records = append(st.Records, records...)
	st.Sources = append(st.Sources, sources...)
	st.PendingQueries = nil
	s.logger.Info("search round merged", "round", round, "queries", len(batch), "failed", failed, "sources", len(sources))
	telemetry.End(span, nil)
	return st, nil
}

func (s *session) reflect(ctx context.Context, st *State) (*State, error) {
	st.LoopCount++
	ctx, span := telemetry.Start(ctx, "research.reflect", attribute.Int("research.loop", st.LoopCount))
	verdict, err := s.reflector.Reflect(ctx, st.Topic, s.date, s.summaries(st), st.ReasoningModel)
	telemetry.End(span, err)
	if err != nil {
		return st, errors.NewStepError(errors.StepReflection, err)
	}

	st.IsSufficient = verdict.IsSufficient
	st.KnowledgeGap = verdict.KnowledgeGap
	st.FollowUps = verdict.FollowUpQueries
	st.Decision = decide(st)

	switch d := st.Decision.(type) {
	case Dispatch:
		s.logger.Info("research continues", "loop_count", st.LoopCount, "knowledge_gap", logging.Trim(st.KnowledgeGap, 200), "follow_ups", len(d.Queries))
		s.dispatch(st, d.Queries)
	case Finalize:
		s.logger.Info("research finalizing", "loop_count", st.LoopCount, "reason", d.Reason)
	}
	return st, nil
}

func (s *session) route(_ context.Context, st *State) (string, error) {
	switch st.Decision.(type) {
	case Dispatch:
		return "dispatch", nil
	case Finalize:
		return "finalize", nil
	}
	return "", fmt.Errorf("no decision after reflection")
}

func (s *session) finalize(ctx context.Context, st *State) (*State, error) {
	ctx, span := telemetry.Start(ctx, "research.answer", attribute.Int("research.sources", len(st.Sources)))
	answer, used, err := s.answerer.Synthesize(ctx, st.Topic, s.date, s.summaries(st), st.Sources, st.ReasoningModel)
	telemetry.End(span, err)
	if err != nil {
		return st, errors.NewStepError(errors.StepAnswer, err)
	}
	st.Answer = answer
	st.UsedSources = used
	return st, nil
}

// summaries returns the record texts, trimmed to the token budget when one
// is configured.
func (s *session) summaries(st *State) []string {
	out := st.Summaries()
	if s.cfg.tokenizer == nil || s.cfg.SummaryTokenBudget <= 0 {
		return out
	}
	for i, text := range out {
		out[i] = s.cfg.tokenizer.Truncate(text, s.cfg.SummaryTokenBudget)
	}
	return out
}
