package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func graphCmd(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Manage graph definitions",
	}

	var registerID string
	register := &cobra.Command{
		Use:   "register <definition.json>",
		Short: "Validate and register a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def map[string]interface{}
			if err := readJSONFile(args[0], &def); err != nil {
				return err
			}

			id := registerID
			if id == "" {
				if v, ok := def["graph_id"].(string); ok {
					id = v
				}
			}

			var out map[string]interface{}
			err := cli.client().Post(cmd.Context(), "/api/v1/graphs", map[string]interface{}{
				"graph_id":   id,
				"definition": def,
			}, &out)
			if err != nil {
				return err
			}
			fmt.Printf("registered graph %s\n", id)
			return nil
		},
	}
	register.Flags().StringVar(&registerID, "id", "", "Graph id (defaults to the definition's graph_id)")

	validate := &cobra.Command{
		Use:   "validate <definition.json>",
		Short: "Validate a graph definition without registering it",
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
			if err := cli.client().Post(cmd.Context(), "/api/v1/graphs/validate", def, &res); err != nil {
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
		Use:   "get <graph-id>",
		Short: "Print a registered graph definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/graphs/"+args[0], &def); err != nil {
				return err
			}
			return printJSON(def)
		},
	}

	summary := &cobra.Command{
		Use:   "summary <graph-id>",
		Short: "Print a compact description of a graph's shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/graphs/"+args[0]+"/summary", &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/graphs", &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	del := &cobra.Command{
		Use:   "delete <graph-id>",
		Short: "Delete a registered graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.client().Delete(cmd.Context(), "/api/v1/graphs/"+args[0], nil); err != nil {
				return err
			}
			fmt.Printf("deleted graph %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(register, validate, get, summary, list, del)
	return cmd
}
