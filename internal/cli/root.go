// Package cli implements the reproc command tree. Commands build the
// service container from configuration and call the services directly;
// the serve command exposes the same services over HTTP.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/stdlogfmt"
	"github.com/spf13/cobra"

	"github.com/example/reproc/internal/config"
	"github.com/example/reproc/internal/version"
	"github.com/example/reproc/internal/wire"
)

var (
	cfgPath string
	debug   bool
)

// RootCmd returns the root reproc command.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reproc",
		Short:   "reproc - data reprocessing request manager",
		Version: version.String(),
		Long: `reproc tracks data reprocessing requests from subcampaign templates
through submission to the remote workflow system. Tickets expand into
chained requests, one chain per input dataset.`,
	}
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug messages")

	cmd.AddCommand(ServeCmd())
	cmd.AddCommand(RequestCmd())
	cmd.AddCommand(TicketCmd())
	cmd.AddCommand(SubcampaignCmd())
	cmd.AddCommand(ChainedRequestCmd())

	return cmd
}

// newLogger builds the process logger honoring the --debug flag.
func newLogger() log.Logger {
	return stdlogfmt.New(stdlogfmt.WithDebugFlag(debug || os.Getenv("REPROC_DEBUG") != ""))
}

// newContainer loads configuration and assembles the services.
func newContainer(logger log.Logger) (*wire.Container, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	container, err := wire.Build(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return container, cfg, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
