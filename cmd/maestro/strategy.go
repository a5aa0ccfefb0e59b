package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/shell/composeio"
	"github.com/maestro-sh/maestro/internal/shell/store"
)

// =============================================================================
// Strategy Commands
// =============================================================================

func strategyCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Manage deployment strategies",
	}
	cmd.AddCommand(
		strategyApplyCmd(configPath),
		strategyImportCmd(configPath),
		strategyListCmd(configPath),
		strategyShowCmd(configPath),
		strategyDeleteCmd(configPath),
	)
	return cmd
}

func strategyApplyCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply -f <file>",
		Short: "Create or update a strategy from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read strategy file: %w", err)
			}

			var strategy domain.Strategy
			if err := yaml.Unmarshal(content, &strategy); err != nil {
				return fmt.Errorf("parse strategy file: %w", err)
			}
			if err := strategy.Validate(); err != nil {
				return err
			}

			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.PutStrategy(cmd.Context(), &strategy); err != nil {
				return err
			}
			return printJSON(strategy)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Strategy file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func strategyImportCmd(configPath *string) *cobra.Command {
	var (
		file string
		name string
	)
	cmd := &cobra.Command{
		Use:   "import -f <compose-file>",
		Short: "Import a docker-compose project as a strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				strategy *domain.Strategy
				err      error
			)
			if name != "" {
				content, readErr := os.ReadFile(file)
				if readErr != nil {
					return fmt.Errorf("read compose file: %w", readErr)
				}
				strategy, err = composeio.Import(cmd.Context(), name, content)
			} else {
				strategy, err = composeio.ImportFile(cmd.Context(), file)
			}
			if err != nil {
				return err
			}

			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.PutStrategy(cmd.Context(), strategy); err != nil {
				return err
			}
			return printJSON(strategy)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Compose file (required)")
	cmd.Flags().StringVar(&name, "name", "", "Strategy name (default: compose file directory)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func strategyListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			strategies, err := rt.store.ListStrategies(cmd.Context(), store.DefaultListOptions())
			if err != nil {
				return err
			}
			return printJSON(strategies)
		},
	}
}

func strategyShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a stored strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			strategy, err := rt.store.GetStrategy(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(strategy)
		},
	}
}

func strategyDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			return rt.store.DeleteStrategy(cmd.Context(), args[0])
		},
	}
}
