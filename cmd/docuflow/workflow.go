package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func workflowCmd(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage custom workflow definitions",
	}

	var registerID string
	register := &cobra.Command{
		Use:   "register <definition.json>",
		Short: "Validate and register a custom workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def map[string]interface{}
			if err := readJSONFile(args[0], &def); err != nil {
				return err
			}

			id := registerID
			if id == "" {
				if v, ok := def["workflow_id"].(string); ok {
					id = v
				}
			}

			var out map[string]interface{}
			err := cli.client().Post(cmd.Context(), "/api/v1/workflows", map[string]interface{}{
				"workflow_id": id,
				"definition":  def,
			}, &out)
			if err != nil {
				return err
			}
			fmt.Printf("registered workflow %s\n", id)
			return nil
		},
	}
	register.Flags().StringVar(&registerID, "id", "", "Workflow id (defaults to the definition's workflow_id)")

	validate := &cobra.Command{
		Use:   "validate <definition.json>",
		Short: "Validate a workflow definition without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def map[string]interface{}
			if err := readJSONFile(args[0], &def); err != nil {
				return err
			}

			var res struct {
				Valid bool   `json:"valid"`
				Error string `json:"error,omitempty"`
			}
			if err := cli.client().Post(cmd.Context(), "/api/v1/workflows/validate", def, &res); err != nil {
				return err
			}
			if !res.Valid {
				fmt.Printf("invalid: %s\n", res.Error)
				return &exitError{code: ExitValidation}
			}
			fmt.Println("valid")
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Print a registered workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/workflows/"+args[0], &def); err != nil {
				return err
			}
			return printJSON(def)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered custom workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/workflows", &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	del := &cobra.Command{
		Use:   "delete <workflow-id>",
		Short: "Delete a registered workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.client().Delete(cmd.Context(), "/api/v1/workflows/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("deleted workflow %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(register, validate, get, list, del)
	return cmd
}
