package main

import (
	"os"

	"github.com/spf13/cobra"
)

// newApplyCmd wires `apply <namespace> <file>` (spec §6): the namespace argument is
// informational for the operator (the claim file's own metadata.namespace is
// authoritative) but required so the command line self-documents which environment a
// claim targets before its contents are read.
func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <namespace> <file>",
		Short: "submit a claim manifest to run (resolve, plan, apply)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[1])
			if err != nil {
				return &cliError{exitCode: exitUserError, cause: err}
			}
			// project is the router's authorization boundary for run_claim (spec §4.6);
			// the control plane uses it as the deployment's actual project rather than
			// deriving one from the claim body's own metadata.namespace.
			data, err := newAPIClient().dispatch(cmd.Context(), "run_claim", map[string]any{
				"claim": string(body), "project": projectFlag,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	cmd.Flags().StringVar(&projectFlag, "project", "default", "project scope")
	return cmd
}

// newDestroyCmd wires `destroy <namespace> <file>` (spec §6). The claim file's
// metadata identifies the deployment; its spec is not re-resolved, since destroy tears
// down whatever the registry's persisted plan last applied.
func newDestroyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy <namespace> <file>",
		Short: "tear down the deployment a claim manifest names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[1])
			if err != nil {
				return &cliError{exitCode: exitUserError, cause: err}
			}
			name, err := claimName(body)
			if err != nil {
				return err
			}
			data, err := newAPIClient().dispatch(cmd.Context(), "destroy_deployment", map[string]any{
				"project": projectFlag, "region": regionFlag, "namespace": args[0], "name": name,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	cmd.Flags().StringVar(&projectFlag, "project", "default", "project scope")
	cmd.Flags().StringVar(&regionFlag, "region", "", "deployment region")
	cmd.MarkFlagRequired("region")
	return cmd
}

var (
	projectFlag string
	regionFlag  string
)
