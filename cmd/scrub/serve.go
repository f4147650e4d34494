package main

import (
	"github.com/spf13/cobra"

	"github.com/contact-scrub/internal/web"
)

func createServeCmd(a *app) *cobra.Command {
	var (
		host      string
		port      int
		webConfig string
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scrub HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runFile, err := a.runFile()
			if err != nil {
				return err
			}

			cfg := web.ConfigFromEnv(a.env)
			if webConfig != "" {
				if cfg, err = web.LoadConfig(webConfig); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if noMetrics {
				cfg.Features.MetricsEnabled = false
			}

			server, err := web.NewServer(cfg, runFile, a.log)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default $WEB_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default $WEB_PORT)")
	cmd.Flags().StringVar(&webConfig, "web-config", "", "JSON server config file")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	return cmd
}
