package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/archive"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/config"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider/claude"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider/gemini"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider/openai"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/search"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/tokenizer/tiktoken"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/tools/clinical"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/tools/fetch"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/metrics"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware/errorhandler"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware/limiter"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware/logger"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/telemetry"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/research"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool/mcp"
)

// app owns everything built from the configuration.
type app struct {
	cfg        *config.Config
	researcher *research.Researcher
	archive    archive.Store
	logger     *slog.Logger

	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse creation order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp wires the researcher, its tools and the optional archive.
// withResearcher=false skips model and tool setup for commands that only
// read the archive.
func newApp(ctx context.Context, cfg *config.Config, withResearcher bool) (_ *app, err error) {
	logging.SetLogger(logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level))
	a := &app{cfg: cfg, logger: logging.WithComponent("cli")}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Disable:     !cfg.Telemetry.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.onClose(func() error { return shutdown(context.Background()) })

	if a.archive, err = newArchive(ctx, cfg.Archive); err != nil {
		return nil, err
	}
	if a.archive != nil {
		a.onClose(a.archive.Close)
	}
	if !withResearcher {
		return a, nil
	}

	client, err := a.newLLM(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := a.newRegistry(ctx)
	if err != nil {
		return nil, err
	}

	opts := []research.Option{
		research.WithInitialQueryCount(cfg.Research.InitialQueries),
		research.WithMaxLoops(cfg.Research.MaxLoops),
		research.WithMaxToolTurns(cfg.Research.MaxToolTurns),
		research.WithConcurrency(cfg.Research.Concurrency),
		research.WithMode(research.Mode(cfg.Research.Mode)),
		research.WithSearchTool(cfg.Research.SearchTool),
		research.WithShortRefScheme(cfg.Research.ShortRefScheme),
		research.WithReasoningModel(cfg.LLM.ReasoningModel),
		research.WithPromptDir(cfg.Research.PromptDir),
		research.WithMiddleware(a.middlewares()...),
	}
	if cfg.Research.SummaryTokenBudget > 0 {
		tok, err := tiktoken.NewTiktokenTokenizer(cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
		opts = append(opts, research.WithSummaryTokenBudget(tok, cfg.Research.SummaryTokenBudget))
	}

	a.researcher, err = research.New(research.Clients{Default: client}, registry, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) middlewares() []middleware.Middleware {
	mws := []middleware.Middleware{
		errorhandler.NewErrorHandler(nil),
		logger.NewCallLogger(logging.WithComponent("llm")),
		metrics.NewLLMCallRecorder(),
	}
	if rps := a.cfg.LLM.RequestsPerSecond; rps > 0 {
		mws = append(mws, limiter.NewRateLimiter(rps, 1))
	}
	return mws
}

func (a *app) newLLM(ctx context.Context) (agent.LLMClient, error) {
	c := a.cfg.LLM
	switch c.Provider {
	case "gemini":
		gc := gemini.DefaultConfig(c.APIKey)
		if c.Model != "" {
			gc.Model = c.Model
		}
		if c.MaxTokens > 0 {
			gc.MaxTokens = int32(c.MaxTokens)
		}
		gc.Temperature = float32(c.Temperature)
		p, err := gemini.New(ctx, gc)
		if err != nil {
			return nil, err
		}
		a.onClose(p.Close)
		return p, nil
	case "claude":
		cc := claude.DefaultConfig(c.APIKey, c.BaseURL)
		if c.Model != "" {
			cc.Model = c.Model
		}
		if c.MaxTokens > 0 {
			cc.MaxTokens = int64(c.MaxTokens)
		}
		cc.Temperature = c.Temperature
		return claude.New(cc), nil
	case "openai", "groq":
		oc := openai.DefaultConfig().WithAPIKey(c.APIKey).WithBaseURL(c.BaseURL)
		if c.Model != "" {
			oc.WithModel(c.Model)
		}
		if c.MaxTokens > 0 {
			oc.MaxTokens = int64(c.MaxTokens)
		}
		oc.Temperature = c.Temperature
		return openai.New(oc), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
}

func (a *app) newRegistry(ctx context.Context) (*tool.Registry, error) {
	registry := tool.NewRegistry()

	backend, err := a.newSearcher()
	if err != nil {
		return nil, err
	}
	searchTool := search.NewTool(backend)
	searchTool.Name = a.cfg.Research.SearchTool
	if err := registry.Register(searchTool); err != nil {
		return nil, err
	}
	if err := registry.Register(fetch.New(nil).Tool()); err != nil {
		return nil, err
	}

	if base := a.cfg.Clinical.BaseURL; base != "" {
		c, err := clinical.New(base, a.cfg.Clinical.RequestsPerSecond, nil)
		if err != nil {
			return nil, err
		}
		for _, t := range c.Tools() {
			if err := registry.Register(t); err != nil {
				return nil, err
			}
		}
	}

	if m := a.cfg.MCP; m.Endpoint != "" || m.Command != "" {
		srv := mcp.Server{Endpoint: m.Endpoint, Command: m.Command, Args: m.Args, Env: m.Env}
		p, err := mcp.Connect(ctx, srv, mcp.WithLogger(a.logger.With("component", "mcp_client")))
		if err != nil {
			return nil, fmt.Errorf("connect mcp server: %w", err)
		}
		a.onClose(p.Close)
		err = registry.Watch(ctx, p, func(err error) {
			a.logger.Warn("mcp tool refresh failed", "error", err)
		})
		if err != nil {
			return nil, err
		}
	}

	a.logger.Info("tools registered", "tools", registry.Names())
	return registry, nil
}

func (a *app) newSearcher() (search.Searcher, error) {
	s := a.cfg.Search
	switch s.Backend {
	case "tavily":
		t := search.NewTavily(s.APIKey, s.Depth)
		t.MaxResults = s.MaxResults
		return t, nil
	case "brave":
		b := search.NewBrave(s.APIKey)
		b.MaxResults = s.MaxResults
		return b, nil
	case "duckduckgo":
		d := search.NewDuckDuckGo()
		d.MaxResults = s.MaxResults
		return d, nil
	case "google":
		model := ""
		if a.cfg.LLM.Provider == "gemini" {
			model = a.cfg.LLM.Model
		}
		return search.NewGoogle(s.APIKey, model), nil
	}
	return nil, fmt.Errorf("unknown search backend %q", s.Backend)
}

func newArchive(ctx context.Context, c config.ArchiveConfig) (archive.Store, error) {
	switch c.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return archive.NewMemoryStore(), nil
	case "redis":
		store := archive.NewRedisStore(&archive.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
			TTL:      c.Redis.TTL,
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect redis archive: %w", err)
		}
		return store, nil
	case "postgres":
		return archive.NewPostgresStore(ctx, c.Postgres.DSN)
	case "mongo":
		return archive.NewMongoStore(ctx, &archive.MongoConfig{
			URI:        c.Mongo.URI,
			Database:   c.Mongo.Database,
			Collection: c.Mongo.Collection,
		})
	}
	return nil, fmt.Errorf("unknown archive backend %q", c.Backend)
}
