package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/expview/internal/server"
)

func (c *cli) newServeCmd() *cobra.Command {
	var (
		addr        string
		maxUploadMB int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the experiment API over HTTP",
		Long: `Serve the experiment API. Each client creates a session, uploads a log
to it and changes the selection; the chart is rebuilt after the selection
has been quiet for the debounce period.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			if maxUploadMB > 0 {
				c.cfg.Server.MaxUploadMB = maxUploadMB
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(c.cfg).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8787)")
	cmd.Flags().IntVar(&maxUploadMB, "max-upload-mb", 0, "Largest accepted upload in MiB")
	return cmd
}
