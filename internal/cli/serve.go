package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolify/config"
	"github.com/jonwraymond/toolify/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool assistant API and ops endpoints",
		Long: `Start the HTTP server.

Endpoints:
  POST /api/chat                    chat turn, JSON {message, session_id}
  POST /api/recognize-tool          multipart "file" image
  POST /api/transcribe              multipart "file" audio
  POST /api/generate-manual         JSON {tool_name, research_context, language}
  POST /api/generate-safety-guide   same body as generate-manual
  POST /api/generate-quick-summary  same body as generate-manual
  /healthz          liveness
  /readyz           readiness (degraded while some keys cool down)
  /health[/{name}]  detailed checks
  /metrics          prometheus metrics
  /keys             key pool state and usage

SIGINT or SIGTERM shuts the server down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var extra []config.Option
			if cmd.Flags().Changed("host") {
				extra = append(extra, config.WithOverride("server.host", host))
			}
			if cmd.Flags().Changed("port") {
				extra = append(extra, config.WithOverride("server.port", port))
			}

			a, err := opts.loadApp(ctx, false, extra...)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context()) // nolint:errcheck // best-effort shutdown

			return server.New(a).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	return cmd
}
