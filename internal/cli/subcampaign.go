package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/reproc/internal/models"
)

// SubcampaignCmd returns the subcampaign command.
func SubcampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subcampaign",
		Short: "Manage subcampaigns (request templates)",
	}

	cmd.AddCommand(subcampaignCreateCmd())
	cmd.AddCommand(subcampaignShowCmd())
	cmd.AddCommand(subcampaignListCmd())
	cmd.AddCommand(subcampaignDeleteCmd())

	return cmd
}

func subcampaignCreateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subcampaign from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var sub models.Subcampaign
			if err := json.Unmarshal(raw, &sub); err != nil {
				return fmt.Errorf("parsing subcampaign file: %w", err)
			}
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			created, err := container.Subcampaigns.Create(cmd.Context(), &sub)
			if err != nil {
				return fmt.Errorf("failed to create subcampaign: %w", err)
			}
			fmt.Printf("%s Created subcampaign %s\n", color.GreenString("✓"), created.PrepID)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with the subcampaign definition")
	cmd.MarkFlagRequired("file")
	return cmd
}

func subcampaignShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [prepid]",
		Short: "Show a subcampaign as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			sub, err := container.Subcampaigns.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sub == nil {
				return fmt.Errorf("subcampaign %s not found", args[0])
			}
			return printJSON(sub)
		},
	}
}

func subcampaignListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subcampaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			subs, err := container.Subcampaigns.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"PrepID", "Release", "Sequences", "Memory", "Energy"})
			for _, s := range subs {
				tw.AppendRow(table.Row{s.PrepID, s.Release, len(s.Sequences), s.Memory, s.Energy})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of subcampaigns")
	return cmd
}

func subcampaignDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [prepid]",
		Short: "Delete a subcampaign",
		Long:  "Delete a subcampaign. Fails while any request still references it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			if err := container.Subcampaigns.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete subcampaign: %w", err)
			}
			fmt.Printf("%s Deleted subcampaign %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
}
