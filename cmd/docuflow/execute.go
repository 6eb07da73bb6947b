package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// executeResult mirrors the engine's synchronous execution envelope
type executeResult struct {
	Success bool                   `json:"success"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// jobView mirrors the fields of a job the CLI cares about
type jobView struct {
	ID           string                 `json:"job_id"`
	WorkflowID   string                 `json:"workflow_id"`
	Status       string                 `json:"status"`
	Result       map[string]interface{} `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CheckpointID string                 `json:"checkpoint_id,omitempty"`
	Progress     struct {
		Current int    `json:"current"`
		Total   int    `json:"total"`
		Message string `json:"message,omitempty"`
	} `json:"progress"`
}

func executeCmd(cli *cliContext) *cobra.Command {
	var (
		inputsPath     string
		definitionPath string
		async          bool
		wait           bool
		priority       string
		webhookURL     string
	)

	cmd := &cobra.Command{
		Use:   "execute [workflow-id]",
		Short: "Execute a workflow",
		Long: `Execute runs a workflow synchronously by default and prints its output.
With --async the workflow is submitted as a background job and the job id is
printed; add --wait to poll the job until it reaches a terminal state.

The workflow id may name a custom workflow, a built-in template or a graph.
With --definition an inline definition file is submitted instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var workflowID string
			if len(args) > 0 {
				workflowID = args[0]
			}
			if workflowID == "" && definitionPath == "" {
				return errors.New("a workflow id or --definition is required")
			}

			var inputs map[string]interface{}
			if inputsPath != "" {
				if err := readJSONFile(inputsPath, &inputs); err != nil {
					return err
				}
			}

			ctx := cmd.Context()

			if async || definitionPath != "" {
				body := map[string]interface{}{
					"inputs":   inputs,
					"priority": priority,
				}
				if definitionPath != "" {
					var def map[string]interface{}
					if err := readJSONFile(definitionPath, &def); err != nil {
						return err
					}
					body["definition"] = def
				} else {
					body["workflow_id"] = workflowID
				}
				if webhookURL != "" {
					body["webhook"] = map[string]string{"url": webhookURL}
				}

				var submitted struct {
					JobID  string `json:"job_id"`
					Status string `json:"status"`
				}
				if err := cli.client().Post(ctx, "/api/v1/execute/async", body, &submitted); err != nil {
					return err
				}

				if !wait {
					fmt.Println(submitted.JobID)
					return nil
				}
				return waitForJob(cmd, cli, submitted.JobID, 2*time.Second)
			}

			var res executeResult
			err := cli.client().Post(ctx, "/api/v1/execute", map[string]interface{}{
				"workflow_id": workflowID,
				"inputs":      inputs,
			}, &res)
			if err != nil {
				return err
			}
			return reportResult(&res)
		},
	}

	cmd.Flags().StringVarP(&inputsPath, "inputs", "i", "", "Inputs JSON file ('-' for stdin)")
	cmd.Flags().StringVarP(&definitionPath, "definition", "f", "", "Inline workflow definition JSON file")
	cmd.Flags().BoolVar(&async, "async", false, "Submit as a background job")
	cmd.Flags().BoolVar(&wait, "wait", false, "With --async, poll the job until terminal")
	cmd.Flags().StringVar(&priority, "priority", "normal", "Job priority (low, normal, high)")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Completion webhook URL")

	return cmd
}

func resumeCmd(cli *cliContext) *cobra.Command {
	var (
		checkpointID string
		inputPath    string
	)

	cmd := &cobra.Command{
		Use:   "resume <graph-id>",
		Short: "Resume a paused graph execution with human input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var humanInput map[string]interface{}
			if inputPath != "" {
				if err := readJSONFile(inputPath, &humanInput); err != nil {
					return err
				}
			}

			var res executeResult
			err := cli.client().Post(cmd.Context(), "/api/v1/graphs/"+args[0]+"/resume", map[string]interface{}{
				"checkpoint_id": checkpointID,
				"human_input":   humanInput,
			}, &res)
			if err != nil {
				return err
			}
			return reportResult(&res)
		},
	}

	cmd.Flags().StringVar(&checkpointID, "checkpoint", "", "Checkpoint id of the paused execution")
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Human input JSON file ('-' for stdin)")
	_ = cmd.MarkFlagRequired("checkpoint")

	return cmd
}

func waitCmd(cli *cliContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job until it reaches a terminal state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitForJob(cmd, cli, args[0], interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "poll-interval", 2*time.Second, "Polling interval")

	return cmd
}

// waitForJob polls the job until it is terminal or paused, then prints it and
// exits with the status-derived code
func waitForJob(cmd *cobra.Command, cli *cliContext, jobID string, interval time.Duration) error {
	ctx := cmd.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var j jobView
		if err := cli.client().Get(ctx, "/api/v1/jobs/"+jobID, &j); err != nil {
			return err
		}

		switch j.Status {
		case "COMPLETED":
			return printJSON(j)
		case "FAILED", "CANCELLED", "TIMEOUT":
			_ = printJSON(j)
			return &exitError{code: statusExitCode(j.Status)}
		case "PAUSED":
			// Waiting further would hang until a human resumes the job.
			fmt.Printf("job %s is paused awaiting human input (checkpoint %s)\n", j.ID, j.CheckpointID)
			return printJSON(j)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// reportResult prints a synchronous execution envelope and derives the exit
// code from its error message when unsuccessful
func reportResult(res *executeResult) error {
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success && res.Error != "" {
		return &exitError{code: classifyMessage(res.Error)}
	}
	return nil
}
