package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "report [session-id]",
		Short: "Show an archived report, or list recent reports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.archive == nil {
				return fmt.Errorf("%w: archive.backend is none", errors.ErrMissingConfig)
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				report, err := a.archive.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printResponse(out, &report.Response, jsonOutput)
			}

			reports, err := a.archive.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tCREATED\tLOOPS\tTOPIC")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID(), r.CreatedAt.Format("2006-01-02 15:04"), r.LoopCount, oneLine(r.Topic, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of reports to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func oneLine(s string, max int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' {
			runes[i] = ' '
		}
	}
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return string(runes)
}
