package main

import (
	"github.com/spf13/cobra"
)

func newDeploymentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deployment", Short: "inspect deployments"}

	var project, region string
	bindScope := func(c *cobra.Command) {
		c.Flags().StringVar(&project, "project", "default", "project scope")
		c.Flags().StringVar(&region, "region", "", "deployment region")
		c.MarkFlagRequired("region")
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "list deployments in a project/region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().dispatch(cmd.Context(), "deployment_list", map[string]any{
				"project": project, "region": region,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	bindScope(list)

	describe := &cobra.Command{
		Use:   "describe <namespace> <name>",
		Short: "show a deployment's registry record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().dispatch(cmd.Context(), "deployment_get", map[string]any{
				"project": project, "region": region, "namespace": args[0], "name": args[1],
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	bindScope(describe)

	var limit int
	logs := &cobra.Command{
		Use:   "logs <namespace> <name>",
		Short: "show a deployment's recent event log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().dispatch(cmd.Context(), "logs", map[string]any{
				"project": project, "region": region, "namespace": args[0], "name": args[1], "limit": limit,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	bindScope(logs)
	logs.Flags().IntVar(&limit, "limit", 100, "maximum number of events to return")

	cmd.AddCommand(list, describe, logs)
	return cmd
}
