package cli

import (
	"context"
	"net/http"

	"github.com/alexedwards/flow"
	"github.com/google/uuid"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/spf13/cobra"

	"github.com/example/reproc/internal/httpapi"
	"github.com/example/reproc/internal/logkeys"
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server and the background submitter.

The listen address comes from the config file and can be overridden
with --listen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			container, cfg, err := newContainer(logger)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = cfg.Listen
			}

			mux := flow.New()
			httpapi.HandleAPIv1("/api", mux, logger,
				container.Requests, container.Tickets, container.Subcampaigns, container.Chains)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go container.Submitter.Run(ctx)

			logger.Info(logkeys.Message, "starting server", "listen", listen)
			err = http.ListenAndServe(listen, trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID))
			logs := []interface{}{logkeys.Message, "server shutdown"}
			if err != nil {
				logs = append(logs, logkeys.Error, err)
			}
			logger.Info(logs...)
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")
	return cmd
}

// newTraceID generates a new HTTP trace ID for context logging.
func newTraceID(_ *http.Request) string {
	return uuid.NewString()
}
