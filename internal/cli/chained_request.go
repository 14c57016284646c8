package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// ChainedRequestCmd returns the chained-request command. Chained
// requests are created by ticket expansion, so the command only reads
// and deletes them.
func ChainedRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Inspect and delete chained requests",
	}

	cmd.AddCommand(chainShowCmd())
	cmd.AddCommand(chainListCmd())
	cmd.AddCommand(chainDeleteCmd())

	return cmd
}

func chainShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [prepid]",
		Short: "Show a chained request as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			chain, err := container.Chains.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if chain == nil {
				return fmt.Errorf("chained request %s not found", args[0])
			}
			return printJSON(chain)
		},
	}
}

func chainListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chained requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			chains, err := container.Chains.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"PrepID", "Requests"})
			for _, c := range chains {
				tw.AppendRow(table.Row{c.PrepID, strings.Join(c.RequestIDs(), ", ")})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of chained requests")
	return cmd
}

func chainDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [prepid]",
		Short: "Delete a chained request and its member requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			if err := container.Chains.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete chained request: %w", err)
			}
			fmt.Printf("%s Deleted chained request %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
}
