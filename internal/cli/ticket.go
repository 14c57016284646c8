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

// TicketCmd returns the ticket command.
func TicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Manage tickets (batch request specifications)",
		Long:  "Create tickets and expand them into chained requests, one chain per input dataset.",
	}

	cmd.AddCommand(ticketCreateCmd())
	cmd.AddCommand(ticketShowCmd())
	cmd.AddCommand(ticketListCmd())
	cmd.AddCommand(ticketDeleteCmd())
	cmd.AddCommand(ticketCreateRequestsCmd())
	cmd.AddCommand(ticketDatasetsCmd())

	return cmd
}

func ticketCreateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket from a JSON file",
		Long: `Create a ticket from a JSON file describing its steps and input
datasets.

Example file:
  {
    "steps": [{"subcampaign": "Run2024A_19Nov2024", "processing_string": "19Nov2024"}],
    "input_datasets": ["/ZeroBias/Run2024A-v1/RAW"]
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var ticket models.Ticket
			if err := json.Unmarshal(raw, &ticket); err != nil {
				return fmt.Errorf("parsing ticket file: %w", err)
			}
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			created, err := container.Tickets.Create(cmd.Context(), &ticket)
			if err != nil {
				return fmt.Errorf("failed to create ticket: %w", err)
			}
			fmt.Printf("%s Created ticket %s\n", color.GreenString("✓"), created.PrepID)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with the ticket definition")
	cmd.MarkFlagRequired("file")
	return cmd
}

func ticketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [prepid]",
		Short: "Show a ticket as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			ticket, err := container.Tickets.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ticket == nil {
				return fmt.Errorf("ticket %s not found", args[0])
			}
			return printJSON(ticket)
		},
	}
}

func ticketListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			tickets, err := container.Tickets.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"PrepID", "Status", "Steps", "Input Datasets", "Chains"})
			for _, t := range tickets {
				tw.AppendRow(table.Row{t.PrepID, t.Status, len(t.Steps), len(t.InputDatasets), len(t.CreatedRequests)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tickets")
	return cmd
}

func ticketDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [prepid]",
		Short: "Delete a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			if err := container.Tickets.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete ticket: %w", err)
			}
			fmt.Printf("%s Deleted ticket %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
}

func ticketCreateRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-requests [prepid]",
		Short: "Expand a ticket into chained requests",
		Long: `Expand a ticket into chained requests, one chain per input dataset.

Expansion is all-or-nothing: if any request cannot be created, the
whole expansion is rolled back and the ticket stays new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			created, err := container.Tickets.CreateRequests(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to create requests: %w", err)
			}
			fmt.Printf("%s Created %d chains from ticket %s\n", color.GreenString("✓"), len(created), args[0])
			for _, chain := range created {
				fmt.Printf("  %s\n", chain.ChainedRequest)
				for _, prepid := range chain.Requests {
					fmt.Printf("    %s\n", prepid)
				}
			}
			return nil
		},
	}
}

func ticketDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets [pattern]",
		Short: "Search the dataset catalog",
		Long:  "List valid datasets matching a pattern, with blacklisted primary datasets removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			datasets, err := container.Tickets.Datasets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, dataset := range datasets {
				fmt.Println(dataset)
			}
			return nil
		},
	}
}
