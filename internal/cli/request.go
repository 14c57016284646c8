package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/reproc/internal/app"
	"github.com/example/reproc/internal/models"
)

// RequestCmd returns the request command.
func RequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage reprocessing requests",
		Long:  "Create, inspect and drive reprocessing requests through their lifecycle.",
	}

	cmd.AddCommand(requestCreateCmd())
	cmd.AddCommand(requestShowCmd())
	cmd.AddCommand(requestListCmd())
	cmd.AddCommand(requestDeleteCmd())
	cmd.AddCommand(requestNextCmd())
	cmd.AddCommand(requestPreviousCmd())
	cmd.AddCommand(requestWorkflowsCmd())
	cmd.AddCommand(requestPriorityCmd())
	cmd.AddCommand(requestResetCmd())
	cmd.AddCommand(requestRunsCmd())

	return cmd
}

func requestCreateCmd() *cobra.Command {
	var input app.CreateRequestInput
	var runs string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a request from a subcampaign",
		Long: `Create a request from a subcampaign template.

Examples:
  reproc request create --subcampaign Run2024A_19Nov2024 \
    --processing-string 19Nov2024 --input-dataset /ZeroBias/Run2024A-v1/RAW`,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			if input.Runs, err = parseRuns(runs); err != nil {
				return err
			}
			req, err := container.Requests.Create(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			fmt.Printf("%s Created request %s\n", color.GreenString("✓"), req.PrepID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Subcampaign, "subcampaign", "", "subcampaign prepid")
	cmd.Flags().StringVar(&input.ProcessingString, "processing-string", "", "processing string")
	cmd.Flags().StringVar(&input.InputDataset, "input-dataset", "", "full input dataset name")
	cmd.Flags().IntVar(&input.Priority, "priority", 0, "request priority")
	cmd.Flags().Float64Var(&input.TimePerEvent, "time-per-event", 0, "seconds per event")
	cmd.Flags().Float64Var(&input.SizePerEvent, "size-per-event", 0, "kilobytes per event")
	cmd.Flags().IntVar(&input.Memory, "memory", 0, "memory in MB")
	cmd.Flags().StringVar(&runs, "runs", "", "comma-separated run numbers")
	cmd.MarkFlagRequired("subcampaign")
	cmd.MarkFlagRequired("processing-string")
	return cmd
}

func requestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [prepid]",
		Short: "Show a request as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if req == nil {
				return fmt.Errorf("request %s not found", args[0])
			}
			return printJSON(req)
		},
	}
}

func requestListCmd() *cobra.Command {
	var limit int
	var ticket string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			var reqs []*models.Request
			if ticket != "" {
				reqs, err = container.Requests.ListByTicket(cmd.Context(), ticket)
			} else {
				reqs, err = container.Requests.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"PrepID", "Status", "Priority", "Input Dataset", "Completed"})
			for _, r := range reqs {
				completed := ""
				if r.TotalEvents > 0 {
					completed = fmt.Sprintf("%.1f%%", 100*float64(r.CompletedEvents)/float64(r.TotalEvents))
				}
				tw.AppendRow(table.Row{r.PrepID, r.Status, r.Priority, r.InputDataset, completed})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of requests")
	cmd.Flags().StringVar(&ticket, "ticket", "", "only requests created by this ticket")
	return cmd
}

func requestDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [prepid]",
		Short: "Delete a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			if err := container.Requests.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete request: %w", err)
			}
			fmt.Printf("%s Deleted request %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
}

func requestNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next [prepid]",
		Short: "Advance a request to its next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.NextStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s is now %s\n", color.GreenString("✓"), req.PrepID, req.Status)
			return nil
		},
	}
}

func requestPreviousCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "previous [prepid]",
		Short: "Move a request back to its previous status",
		Long: `Move a request back to its previous status.

Moving back from submitting or submitted rejects the active remote
workflows and resets the request's output bookkeeping.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.PreviousStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s is now %s\n", color.GreenString("✓"), req.PrepID, req.Status)
			return nil
		},
	}
}

func requestWorkflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-workflows [prepid]",
		Short: "Synchronize a request with its remote workflows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.UpdateWorkflows(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s: %d workflows, %d/%d events\n", color.GreenString("✓"),
				req.PrepID, len(req.Workflows), req.CompletedEvents, req.TotalEvents)
			return nil
		},
	}
}

func requestPriorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority [prepid] [priority]",
		Short: "Change the priority of a submitted request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q", args[1])
			}
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.ChangePriority(cmd.Context(), args[0], priority)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s priority is now %d\n", color.GreenString("✓"), req.PrepID, req.Priority)
			return nil
		},
	}
}

func requestResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [prepid]",
		Short: "Reload the subcampaign defaults of a new request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			req, err := container.Requests.OptionReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s Reset %s from subcampaign %s\n", color.GreenString("✓"), req.PrepID, req.Subcampaign)
			return nil
		},
	}
}

func requestRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [prepid]",
		Short: "Resolve the run list a request would process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := newContainer(newLogger())
			if err != nil {
				return err
			}
			runs, err := container.Requests.RunsForRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(runs)
		},
	}
}

// parseRuns parses a comma-separated run list, "100,200,300".
func parseRuns(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var runs []int
	for _, part := range strings.Split(s, ",") {
		run, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid run %q", part)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
