package main

import (
	"github.com/docuflow/engine/cmd/docuflow/client"
	"github.com/spf13/cobra"
)

func templateCmd(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Browse and instantiate workflow templates",
	}

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates, optionally filtered by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			path := "/api/v1/templates" + client.Query(map[string]string{"category": category})
			if err := cli.client().Get(cmd.Context(), path, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	list.Flags().StringVar(&category, "category", "", "Filter by category")

	get := &cobra.Command{
		Use:   "get <template-id>",
		Short: "Print a template's parameter schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/templates/"+args[0], &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List template categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]interface{}
			if err := cli.client().Get(cmd.Context(), "/api/v1/templates/categories", &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	var (
		paramsPath   string
		autoRegister bool
		workflowID   string
	)
	instantiate := &cobra.Command{
		Use:   "instantiate <template-id>",
		Short: "Render a template into a concrete workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params map[string]interface{}
			if paramsPath != "" {
				if err := readJSONFile(paramsPath, &params); err != nil {
					return err
				}
			}

			var def map[string]interface{}
			err := cli.client().Post(cmd.Context(), "/api/v1/templates/"+args[0]+"/instantiate", map[string]interface{}{
				"parameters":    params,
				"auto_register": autoRegister,
				"workflow_id":   workflowID,
			}, &def)
			if err != nil {
				return err
			}
			return printJSON(def)
		},
	}
	instantiate.Flags().StringVarP(&paramsPath, "params", "p", "", "Parameters JSON file ('-' for stdin)")
	instantiate.Flags().BoolVar(&autoRegister, "register", false, "Register the rendered definition")
	instantiate.Flags().StringVar(&workflowID, "id", "", "Workflow id for registration (defaults to the template id)")

	cmd.AddCommand(list, get, categories, instantiate)
	return cmd
}
