package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/archive"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/config"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/research"
)

type rootOptions struct {
	cfgFile        string
	initialQueries int
	maxLoops       int
	reasoningModel string
	mode           string
	provider       string
	model          string
	searchBackend  string
	jsonOutput     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "research [question]",
		Short: "Research a question on the web and answer it with citations",
		Long: "research generates search queries for a question, runs them in parallel, " +
			"reflects on what is still missing and repeats up to --max-loops times before " +
			"writing a cited answer. The answer goes to stdout, logs to stderr.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return cmd.Help()
			}
			return runResearch(cmd, opts, question)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", os.Getenv("DEEPRESEARCH_CONFIG"), "Path to research.yaml")
	flags.StringVar(&opts.provider, "provider", "", "LLM provider: gemini, openai, claude or groq")
	flags.StringVar(&opts.model, "model", "", "Model for query generation and searching")
	flags.StringVar(&opts.searchBackend, "search", "", "Search backend: tavily, brave, duckduckgo or google")

	local := root.Flags()
	local.IntVar(&opts.initialQueries, "initial-queries", 0, "Number of initial search queries")
	local.IntVar(&opts.maxLoops, "max-loops", 0, "Maximum number of reflection loops")
	local.StringVar(&opts.reasoningModel, "reasoning-model", "", "Model for reflection and the final answer")
	local.StringVar(&opts.mode, "mode", "", "Search mode: direct or agentic")
	local.BoolVar(&opts.jsonOutput, "json", false, "Print the full response as JSON")

	root.AddCommand(newServeCmd(opts), newReportCmd(opts))
	return root
}

// loadConfig reads the config file and applies the command-line overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.SetProvider(o.provider)
	cfg.SetSearchBackend(o.searchBackend)
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.mode != "" {
		cfg.Research.Mode = o.mode
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runResearch(cmd *cobra.Command, opts *rootOptions, question string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.researcher.Run(ctx, research.Request{
		InitialMessage:    question,
		InitialQueryCount: opts.initialQueries,
		MaxLoops:          opts.maxLoops,
		ReasoningModel:    opts.reasoningModel,
	})
	if err != nil {
		return err
	}

	if a.archive != nil {
		if err := a.archive.Save(ctx, archive.NewReport(resp, time.Now())); err != nil {
			a.logger.Warn("failed to archive report", "session_id", resp.SessionID, "error", err)
		}
	}
	return printResponse(cmd.OutOrStdout(), resp, opts.jsonOutput)
}

func printResponse(w io.Writer, resp *research.Response, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	_, err := fmt.Fprintln(w, resp.Answer)
	return err
}
