package main

import (
	"fmt"
	"strconv"

	"github.com/docuflow/engine/cmd/docuflow/client"
	"github.com/spf13/cobra"
)

func jobCmd(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage jobs",
	}

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Print a job's status and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/jobs/"+args[0], &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	var (
		status       string
		workflowID   string
		workflowType string
		limit        int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{
				"status":        status,
				"workflow_id":   workflowID,
				"workflow_type": workflowType,
			}
			if limit > 0 {
				params["limit"] = strconv.Itoa(limit)
			}

			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/jobs"+client.Query(params), &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	list.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, ...)")
	list.Flags().StringVar(&workflowID, "workflow", "", "Filter by workflow id")
	list.Flags().StringVar(&workflowType, "type", "", "Filter by workflow type (builtin, custom, inline, graph)")
	list.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to return")

	cancel := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.client().Post(cmd.Context(), "/api/v1/jobs/"+args[0]+"/cancel", nil, nil); err != nil {
				return err
			}
			fmt.Printf("cancelled job %s\n", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a non-running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.client().Delete(cmd.Context(), "/api/v1/jobs/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("deleted job %s\n", args[0])
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print queue and job statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/jobs/stats", &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cmd.AddCommand(get, list, cancel, del, stats)
	return cmd
}
