package main

import (
	"os"

	"github.com/spf13/cobra"
)

// kindCommands builds the `publish`/`list`/`get` subcommands shared by module, stack,
// and provider (spec §6 CLI surface); extra is appended for the module-only
// `deprecate`/`download` pair catalog.go wires just for KindModule.
func kindCommands(use, publishEvent, listEvent, getEvent string, extra ...*cobra.Command) []*cobra.Command {
	publish := &cobra.Command{
		Use:   "publish <track> <name> <version> <source-file>",
		Short: "publish a " + use + " artifact",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[3])
			if err != nil {
				return &cliError{exitCode: exitUserError, cause: err}
			}
			force, _ := cmd.Flags().GetBool("force")
			data, err := newAPIClient().dispatch(cmd.Context(), publishEvent, map[string]any{
				"track": args[0], "name": args[1], "version": args[2],
				"source": string(source), "forceRepublish": force,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
	publish.Flags().Bool("force", false, "republish even if this version already exists")

	list := &cobra.Command{
		Use:   "list",
		Short: "list published " + use + " names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().dispatch(cmd.Context(), listEvent, map[string]any{})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}

	get := &cobra.Command{
		Use:   "get <track> <name> [version]",
		Short: "get a " + use + " version (defaults to latest)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := "latest"
			if len(args) == 3 {
				version = args[2]
			}
			data, err := newAPIClient().dispatch(cmd.Context(), getEvent, map[string]any{
				"track": args[0], "name": args[1], "version": version,
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}

	return append([]*cobra.Command{publish, list, get}, extra...)
}

func newModuleCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "module", Short: "manage published modules"}
	cmd.AddCommand(kindCommands("module", "publish_module", "list_modules", "get_module_version",
		newDeprecateCmd("deprecate_module"), newDownloadCmd("download_module"))...)
	return cmd
}

func newStackCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "stack", Short: "manage published stacks"}
	cmd.AddCommand(kindCommands("stack", "publish_stack", "list_stacks", "get_stack_version")...)
	return cmd
}

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "provider", Short: "manage published providers"}
	cmd.AddCommand(kindCommands("provider", "publish_provider", "list_providers", "get_provider_version")...)
	return cmd
}

func newDeprecateCmd(event string) *cobra.Command {
	return &cobra.Command{
		Use:   "deprecate <track> <name> <version>",
		Short: "mark a version deprecated",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := newAPIClient().dispatch(cmd.Context(), event, map[string]any{
				"track": args[0], "name": args[1], "version": args[2],
			})
			return err
		},
	}
}

func newDownloadCmd(event string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <track> <name> <version>",
		Short: "print a presigned download URL",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newAPIClient().dispatch(cmd.Context(), event, map[string]any{
				"track": args[0], "name": args[1], "version": args[2],
			})
			if err != nil {
				return err
			}
			return printResult(data)
		},
	}
}
