// Command infraweave is the CLI adapter over a running control plane (spec §6 CLI
// surface): `module`/`stack`/`provider` publish and read the catalog, `apply`/`destroy`
// drive a deployment through a claim file, and `deployment` inspects registry state —
// every subcommand ultimately posts one {event, payload} envelope to the same
// /api/v1/dispatch endpoint cmd/controlplane's HTTP transport serves.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string
	token  string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		code := exitCodeFor(err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "infraweave",
		Short:         "CLI client for the InfraWeave control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("INFRAWEAVE_API_URL", "http://localhost:8080"), "control plane base URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("INFRAWEAVE_TOKEN"), "bearer token (defaults to INFRAWEAVE_TOKEN)")

	root.AddCommand(newModuleCmd(), newStackCmd(), newProviderCmd())
	root.AddCommand(newApplyCmd(), newDestroyCmd())
	root.AddCommand(newDeploymentCmd())
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newAPIClient() *client {
	return newClient(apiURL, token)
}

// printResult renders a dispatch response's data as indented JSON, the one output
// shape every subcommand shares regardless of what the underlying event returns.
func printResult(data any) error {
	if data == nil {
		return nil
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &cliError{exitCode: exitUserError, cause: err}
	}
	fmt.Println(string(out))
	return nil
}
