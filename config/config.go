// Package config loads the application configuration of the research
// binaries from a YAML file, DEEPRESEARCH_* environment overrides and the
// usual provider credential variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
)

// EnvPrefix prefixes every override variable, e.g. DEEPRESEARCH_RESEARCH_MAX_LOOPS.
const EnvPrefix = "DEEPRESEARCH"

// GroqBaseURL is the OpenAI-compatible endpoint used for provider "groq".
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Search    SearchConfig    `mapstructure:"search"`
	Clinical  ClinicalConfig  `mapstructure:"clinical"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	ReasoningModel    string  `mapstructure:"reasoning_model"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// ResearchConfig mirrors the research.Option set.
type ResearchConfig struct {
	InitialQueries     int    `mapstructure:"initial_queries"`
	MaxLoops           int    `mapstructure:"max_loops"`
	MaxToolTurns       int    `mapstructure:"max_tool_turns"`
	Concurrency        int    `mapstructure:"concurrency"`
	Mode               string `mapstructure:"mode"`
	SearchTool         string `mapstructure:"search_tool"`
	ShortRefScheme     string `mapstructure:"short_ref_scheme"`
	SummaryTokenBudget int    `mapstructure:"summary_token_budget"`
	PromptDir          string `mapstructure:"prompt_dir"`
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Backend    string `mapstructure:"backend"`
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
	Depth      string `mapstructure:"depth"`
}

// ClinicalConfig enables the clinical data tools when BaseURL is set.
type ClinicalConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// MCPConfig connects an MCP server when Endpoint or Command is set.
type MCPConfig struct {
	Endpoint string   `mapstructure:"endpoint"`
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Env      []string `mapstructure:"env"`
}

// ArchiveConfig selects where finished reports are stored.
type ArchiveConfig struct {
	Backend  string         `mapstructure:"backend"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// RedisConfig configures the Redis archive.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PostgresConfig configures the PostgreSQL archive.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MongoConfig configures the MongoDB archive.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

var defaults = map[string]any{
	"llm.provider":                  "gemini",
	"llm.model":                     "",
	"llm.reasoning_model":           "",
	"llm.base_url":                  "",
	"llm.api_key":                   "",
	"llm.temperature":               0.0,
	"llm.max_tokens":                0,
	"llm.requests_per_second":       0.0,
	"research.initial_queries":      3,
	"research.max_loops":            2,
	"research.max_tool_turns":       5,
	"research.concurrency":          8,
	"research.mode":                 "direct",
	"research.search_tool":          "web_search",
	"research.short_ref_scheme":     "https://research.ref/id",
	"research.summary_token_budget": 0,
	"research.prompt_dir":           "",
	"search.backend":                "duckduckgo",
	"search.api_key":                "",
	"search.max_results":            5,
	"search.depth":                  "basic",
	"clinical.base_url":             "",
	"clinical.requests_per_second":  2.0,
	"mcp.endpoint":                  "",
	"mcp.command":                   "",
	"mcp.args":                      []string{},
	"mcp.env":                       []string{},
	"archive.backend":               "none",
	"archive.redis.addr":            "localhost:6379",
	"archive.redis.password":        "",
	"archive.redis.db":              0,
	"archive.redis.prefix":          "deepresearch:report:",
	"archive.redis.ttl":             "168h",
	"archive.postgres.dsn":          "",
	"archive.mongo.uri":             "mongodb://localhost:27017",
	"archive.mongo.database":        "deepresearch",
	"archive.mongo.collection":      "reports",
	"server.addr":                   ":8080",
	"server.request_timeout":        "10m",
	"telemetry.enabled":             false,
	"telemetry.service_name":        "deepresearch",
	"telemetry.endpoint":            "",
	"logging.format":                "json",
	"logging.level":                 "info",
}

// llmKeyEnv maps a provider to its credential variable.
var llmKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"groq":   "GROQ_API_KEY",
}

// searchKeyEnv maps a search backend to its credential variable.
var searchKeyEnv = map[string]string{
	"tavily": "TAVILY_API_KEY",
	"brave":  "BRAVE_API_KEY",
	"google": "GEMINI_API_KEY",
}

// Load reads path (optional) and applies environment overrides. It does not
// validate; call Validate once flags have been applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyEnvCredentials()
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) applyEnvCredentials() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(llmKeyEnv[strings.ToLower(c.LLM.Provider)])
	}
	if c.Search.APIKey == "" {
		if env, ok := searchKeyEnv[strings.ToLower(c.Search.Backend)]; ok {
			c.Search.APIKey = os.Getenv(env)
		}
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Search.Backend = strings.ToLower(strings.TrimSpace(c.Search.Backend))
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	if c.LLM.Provider == "groq" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = GroqBaseURL
	}
}

// SetProvider switches the LLM provider and re-resolves its credential
// from the environment unless one was configured explicitly.
func (c *Config) SetProvider(provider string) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == c.LLM.Provider {
		return
	}
	if c.LLM.BaseURL == GroqBaseURL {
		c.LLM.BaseURL = ""
	}
	c.LLM.Provider = provider
	c.LLM.APIKey = os.Getenv(EnvPrefix + "_LLM_API_KEY")
	c.applyEnvCredentials()
	c.normalize()
}

// SetSearchBackend switches the search backend and re-resolves its
// credential from the environment.
func (c *Config) SetSearchBackend(backend string) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" || backend == c.Search.Backend {
		return
	}
	c.Search.Backend = backend
	c.Search.APIKey = os.Getenv(EnvPrefix + "_SEARCH_API_KEY")
	c.applyEnvCredentials()
}

// Validate reports missing credentials as errors.ErrMissingConfig and any
// other invalid setting as a combined validation error.
func (c *Config) Validate() error {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, credentialName("llm.api_key", llmKeyEnv[c.LLM.Provider]))
	}
	if env, ok := searchKeyEnv[c.Search.Backend]; ok && c.Search.APIKey == "" {
		missing = append(missing, credentialName("search.api_key", env))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrMissingConfig, strings.Join(missing, ", "))
	}

	v := NewValidator()
	v.ValidateOneOf("llm.provider", c.LLM.Provider, "gemini", "openai", "claude", "groq")
	v.ValidateFloatRange("llm.temperature", c.LLM.Temperature, 0, 2)
	v.ValidateNonNegativeFloat("llm.requests_per_second", c.LLM.RequestsPerSecond)
	v.RequirePositive("research.initial_queries", c.Research.InitialQueries)
	v.RequirePositive("research.max_loops", c.Research.MaxLoops)
	v.RequirePositive("research.max_tool_turns", c.Research.MaxToolTurns)
	v.RequirePositive("research.concurrency", c.Research.Concurrency)
	v.ValidateOneOf("research.mode", c.Research.Mode, "direct", "agentic")
	v.RequireNonEmpty("research.search_tool", c.Research.SearchTool)
	v.RequireNonEmpty("research.short_ref_scheme", c.Research.ShortRefScheme)
	v.ValidateRange("research.summary_token_budget", c.Research.SummaryTokenBudget, 0, 1<<20)
	v.ValidateOneOf("search.backend", c.Search.Backend, "tavily", "brave", "duckduckgo", "google")
	v.ValidateRange("search.max_results", c.Search.MaxResults, 1, 20)
	v.ValidateNonNegativeFloat("clinical.requests_per_second", c.Clinical.RequestsPerSecond)
	v.ValidateOneOf("archive.backend", c.Archive.Backend, "none", "memory", "redis", "postgres", "mongo")
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	if c.MCP.Endpoint != "" && c.MCP.Command != "" {
		v.ValidateOneOf("mcp", "endpoint and command", "endpoint or command")
	}
	if err := v.Error(); err != nil {
		return err
	}

	switch c.Archive.Backend {
	case "redis":
		return ValidateRedisConfig(c.Archive.Redis.Addr, c.Archive.Redis.DB, c.Archive.Redis.Prefix)
	case "postgres":
		return NewValidator().RequireNonEmpty("archive.postgres.dsn", c.Archive.Postgres.DSN).Error()
	case "mongo":
		return ValidateMongoDBConfig(c.Archive.Mongo.URI, c.Archive.Mongo.Database, c.Archive.Mongo.Collection)
	}
	return nil
}

func credentialName(key, env string) string {
	if env == "" {
		return key
	}
	return key + " (or " + env + ")"
}
