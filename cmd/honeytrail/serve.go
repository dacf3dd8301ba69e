package main

import (
	"github.com/spf13/cobra"

	"honeytrail/internal/api"
	"honeytrail/internal/logger"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session browser API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a := cfg.Honeytrail.API
			if addr != "" {
				a.Addr = addr
			}

			var rules api.RuleLookup
			store, err := buildStore(ctx, cfg.Honeytrail.Similarity)
			if err != nil {
				logger.Warnf("Rule lookup disabled: %v", err)
			} else {
				defer store.Close()
				rules = store
			}

			srv := api.NewServer(api.Config{
				Addr:           a.Addr,
				AllowedOrigins: a.AllowedOrigins,
				ReadTimeout:    a.ReadTimeout,
				WriteTimeout:   a.WriteTimeout,
			}, cfg.Honeytrail.Paths, rules)
			info("listening on %s", a.Addr)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
