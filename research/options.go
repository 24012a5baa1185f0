package research

import (
	"strings"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

// Mode selects how a search query is executed.
type Mode string

const (
	// ModeDirect calls the search tool once with the query.
	ModeDirect Mode = "direct"
	// ModeAgentic lets the searcher model call any registered tool in a
	// bounded loop.
	ModeAgentic Mode = "agentic"
)

// Tokenizer trims text to a token budget.
type Tokenizer interface {
	Truncate(text string, maxTokens int) string
}

// Config controls a Researcher.
type Config struct {
	Name              string // Logical name for logging
	InitialQueryCount int    // Default number of initial queries per session
	MaxLoops          int    // Default reflection budget per session
	MaxToolTurns      int    // Bound on the agentic tool-calling loop
	Concurrency       int    // Parallel searches across all sessions of this Researcher
	Mode              Mode
	SearchTool        string // Tool used in direct mode
	ShortRefScheme    string // Prefix of short references
	// ReasoningModel is the default model for reflection and answer
	// synthesis. Empty uses each client's configured model.
	ReasoningModel string

	// SummaryTokenBudget caps each summary handed to reflection and answer
	// prompts. Zero disables trimming; requires a Tokenizer.
	SummaryTokenBudget int

	// PromptDir holds "<name>.tmpl" files overriding the default prompts.
	PromptDir string

	tokenizer   Tokenizer
	middlewares []middleware.Middleware
	now         func() time.Time
}

// Option customises the Researcher configuration.
type Option func(*Config)

// WithName sets the logical name used in logs.
func WithName(name string) Option {
	return func(cfg *Config) {
		if strings.TrimSpace(name) != "" {
			cfg.Name = name
		}
	}
}

// WithInitialQueryCount sets the default number of initial queries.
func WithInitialQueryCount(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.InitialQueryCount = n
		}
	}
}

// WithMaxLoops sets the default reflection budget.
func WithMaxLoops(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxLoops = n
		}
	}
}

// WithMaxToolTurns bounds the agentic tool loop of a single search.
func WithMaxToolTurns(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.MaxToolTurns = n
		}
	}
}

// WithConcurrency bounds how many searches run at once.
func WithConcurrency(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Concurrency = n
		}
	}
}

// WithMode selects direct or agentic search execution.
func WithMode(mode Mode) Option {
	return func(cfg *Config) {
		switch mode {
		case ModeDirect, ModeAgentic:
			cfg.Mode = mode
		}
	}
}

// WithSearchTool names the tool called in direct mode.
func WithSearchTool(name string) Option {
	return func(cfg *Config) {
		if strings.TrimSpace(name) != "" {
			cfg.SearchTool = name
		}
	}
}

// WithShortRefScheme sets the prefix of short references.
func WithShortRefScheme(scheme string) Option {
	return func(cfg *Config) {
		if strings.TrimSpace(scheme) != "" {
			cfg.ShortRefScheme = scheme
		}
	}
}

// WithReasoningModel sets the default model for reflection and answer
// synthesis. A request's own ReasoningModel takes precedence.
func WithReasoningModel(model string) Option {
	return func(cfg *Config) {
		cfg.ReasoningModel = strings.TrimSpace(model)
	}
}

// WithSummaryTokenBudget trims each summary to n tokens using tok.
func WithSummaryTokenBudget(tok Tokenizer, n int) Option {
	return func(cfg *Config) {
		if tok != nil && n > 0 {
			cfg.tokenizer = tok
			cfg.SummaryTokenBudget = n
		}
	}
}

// WithPromptDir loads prompt overrides from dir.
func WithPromptDir(dir string) Option {
	return func(cfg *Config) {
		cfg.PromptDir = strings.TrimSpace(dir)
	}
}

// WithMiddleware wraps every model call of the Researcher.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(cfg *Config) {
		cfg.middlewares = append(cfg.middlewares, m...)
	}
}

// WithClock overrides the clock used for the current date in prompts.
func WithClock(now func() time.Time) Option {
	return func(cfg *Config) {
		if now != nil {
			cfg.now = now
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Name:              "deepresearch",
		InitialQueryCount: 3,
		MaxLoops:          2,
		MaxToolTurns:      5,
		Concurrency:       8,
		Mode:              ModeDirect,
		SearchTool:        "web_search",
		ShortRefScheme:    citation.DefaultScheme,
		now:               time.Now,
	}
}

func applyOptions(cfg *Config, opts []Option) *Config {
	if cfg == nil {
		cfg = defaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
