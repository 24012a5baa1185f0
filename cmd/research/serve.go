package main

import (
	"github.com/spf13/cobra"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve research sessions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
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

			srv := server.New(a.researcher, a.archive, cfg.Server.RequestTimeout)
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
