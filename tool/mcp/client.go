package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
)

// ErrClientClosed is returned when the MCP client has been closed.
var ErrClientClosed = errors.New("mcp client closed")

// Option configures optional MCP client behaviour.
type Option func(*clientConfig)

type clientConfig struct {
	implementation sdkmcp.Implementation
	logger         *slog.Logger
	args           []string
	env            []string
	httpClient     *http.Client
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithCommandArgs appends arguments for an stdio server command.
func WithCommandArgs(args ...string) Option {
	return func(cfg *clientConfig) {
		cfg.args = append(cfg.args, args...)
	}
}

// WithCommandEnv appends KEY=VALUE pairs to an stdio server's environment.
func WithCommandEnv(env ...string) Option {
	return func(cfg *clientConfig) {
		cfg.env = append(cfg.env, env...)
	}
}

// WithHTTPClient supplies the HTTP client of the streamable transport.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// Client wraps the official MCP Go SDK client and session.
type Client struct {
	sdkClient *sdkmcp.Client
	session   *sdkmcp.ClientSession
	logger    *slog.Logger

	toolsChanged chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Server names the MCP server to connect to. Command wins over Endpoint.
type Server struct {
	Endpoint string
	Command  string
	Args     []string
	Env      []string
}

// Connect dials srv over stdio when a command is set, otherwise over
// streamable HTTP, and verifies the server lists its tools. The returned
// client is a tool.Provider.
func Connect(ctx context.Context, srv Server, opts ...Option) (*Client, error) {
	var (
		client *Client
		err    error
	)
	switch {
	case strings.TrimSpace(srv.Command) != "":
		opts = append(opts, WithCommandArgs(srv.Args...), WithCommandEnv(srv.Env...))
		client, err = NewStdioClient(ctx, srv.Command, opts...)
	case strings.TrimSpace(srv.Endpoint) != "":
		client, err = NewStreamableClient(ctx, srv.Endpoint, opts...)
	default:
		return nil, errors.New("mcp: server needs an endpoint or a command")
	}
	if err != nil {
		return nil, err
	}
	if _, err := client.Tools(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}
	return client, nil
}

// NewStdioClient launches an MCP server command using the stdio transport and performs
// the initialization handshake.
func NewStdioClient(ctx context.Context, command string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("mcp: command cannot be empty")
	}
	cfg := applyOptions(opts)

	cmd := exec.Command(command, cfg.args...)
	if len(cfg.env) > 0 {
		cmd.Env = append(os.Environ(), cfg.env...)
	}
	cmd.Stderr = logWriter{logger: cfg.logger}

	client := newClient(cfg)
	transport := &sdkmcp.CommandTransport{Command: cmd}
	if err := client.connect(ctx, transport); err != nil {
		return nil, err
	}
	return client, nil
}

// NewStreamableClient connects to an MCP server over the streamable HTTP transport.
func NewStreamableClient(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("mcp: endpoint cannot be empty")
	}
	cfg := applyOptions(opts)

	client := newClient(cfg)
	transport := &sdkmcp.StreamableClientTransport{Endpoint: endpoint}
	if cfg.httpClient != nil {
		transport.HTTPClient = cfg.httpClient
	}
	if err := client.connect(ctx, transport); err != nil {
		return nil, err
	}
	return client, nil
}

func newClient(cfg clientConfig) *Client {
	client := &Client{
		logger:       cfg.logger,
		toolsChanged: make(chan struct{}, 1),
	}
	client.sdkClient = sdkmcp.NewClient(&cfg.implementation, &sdkmcp.ClientOptions{
		ToolListChangedHandler: func(context.Context, *sdkmcp.ToolListChangedRequest) {
			select {
			case client.toolsChanged <- struct{}{}:
			default:
			}
		},
		LoggingMessageHandler: func(_ context.Context, req *sdkmcp.LoggingMessageRequest) {
			if req != nil && req.Params != nil {
				client.logger.Debug("mcp server log", "level", req.Params.Level, "data", req.Params.Data)
			}
		},
	})
	return client
}

func (c *Client) connect(ctx context.Context, transport sdkmcp.Transport) error {
	session, err := c.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp: connect failed: %w", err)
	}
	c.session = session
	if res := session.InitializeResult(); res != nil && res.ServerInfo != nil {
		c.logger.Info("mcp session established", "server", res.ServerInfo.Name, "version", res.ServerInfo.Version)
	}
	go c.monitorSession()
	return nil
}

// Close terminates the MCP client and underlying transport.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.session != nil {
			c.closeErr = c.session.Close()
		}
	})
	return c.closeErr
}

// ToolsChanged reports when the server indicates that the tool list has changed.
func (c *Client) ToolsChanged() <-chan struct{} {
	return c.toolsChanged
}

func (c *Client) monitorSession() {
	if err := c.session.Wait(); err != nil && !errors.Is(err, sdkmcp.ErrConnectionClosed) {
		c.logger.Warn("mcp session ended with error", "error", err)
	}
	_ = c.Close()
}

func applyOptions(opts []Option) clientConfig {
	cfg := clientConfig{
		implementation: sdkmcp.Implementation{
			Name:    "deepresearch",
			Version: "0.1.0",
		},
		logger: logging.WithComponent("mcp_client"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type logWriter struct {
	logger *slog.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		w.logger.Debug("mcp server stderr", "line", msg)
	}
	return len(p), nil
}
