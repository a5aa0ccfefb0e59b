package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/shell/docker"
	"github.com/maestro-sh/maestro/internal/shell/executor"
	"github.com/maestro-sh/maestro/internal/shell/monitor"
	"github.com/maestro-sh/maestro/internal/shell/store"
)

// =============================================================================
// CLI Runtime
// =============================================================================

// runtime bundles the components a one-shot CLI command needs.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	store    store.Store
	docker   docker.Client
	monitor  *monitor.Monitor
	executor *executor.Executor
}

// openRuntime loads configuration and connects to the store and the Docker
// daemon. The caller must Close the runtime.
func openRuntime(configPath string) (*runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	logger := SetupLogger(cfg)

	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{Op: "openRuntime", Err: err, ExitCode: ExitDatabaseError}
	}

	d, err := docker.NewEngineClient(cfg.Docker.Host)
	if err != nil {
		s.Close()
		return nil, &ServerError{Op: "openRuntime", Err: err, ExitCode: ExitDockerError}
	}

	mon := monitor.New(d, cfg.Monitor.Thresholds, cfg.Monitor.MonitorSettings(), logger)
	exec := executor.New(d, mon, cfg.Executor.ExecutorSettings(), logger)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		docker:   d,
		monitor:  mon,
		executor: exec,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.docker.Close(); err != nil {
		rt.logger.Error("Docker client close error", "error", err)
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("database close error", "error", err)
	}
}

// persistResult mirrors an operation outcome into the deployment record.
func (rt *runtime) persistResult(ctx context.Context, result *executor.Result) {
	record, err := rt.store.GetDeployment(ctx, result.Deployment)
	if err != nil {
		record = domain.NewDeployment(result.Deployment, result.Strategy)
	}
	if result.Network != "" {
		record.NetworkName = result.Network
	}
	record.Status = result.Status
	record.Errors = result.Errors
	record.UpdatedAt = time.Now().UTC()

	names := make([]string, 0, len(result.Containers))
	for name := range result.Containers {
		names = append(names, name)
	}
	sort.Strings(names)
	record.Containers = record.Containers[:0]
	for _, name := range names {
		c := result.Containers[name]
		record.Containers = append(record.Containers, domain.ContainerState{
			Name:        c.Name,
			ContainerID: c.ContainerID,
			Status:      c.Status,
			Error:       c.Error,
		})
	}

	if err := rt.store.PutDeployment(ctx, record); err != nil {
		rt.logger.Warn("failed to persist deployment record", "deployment", result.Deployment, "error", err)
	}
}

// printJSON writes an indented JSON document to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseEnvOverrides parses "container:KEY=VALUE" flags into per-container
// environment override maps.
func parseEnvOverrides(flags []string) (map[string]map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	overrides := make(map[string]map[string]string)
	for _, f := range flags {
		target, kv, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("invalid env override %q, expected container:KEY=VALUE", f)
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env override %q, expected container:KEY=VALUE", f)
		}
		if overrides[target] == nil {
			overrides[target] = make(map[string]string)
		}
		overrides[target][key] = value
	}
	return overrides, nil
}

// =============================================================================
// Deployment Commands
// =============================================================================

func deployCmd(configPath *string) *cobra.Command {
	var (
		network  string
		envFlags []string
	)
	cmd := &cobra.Command{
		Use:   "deploy <strategy> <deployment>",
		Short: "Deploy a stored strategy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			envOverrides, err := parseEnvOverrides(envFlags)
			if err != nil {
				return err
			}

			strategy, err := rt.store.GetStrategy(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("strategy %q: %w", args[0], err)
			}

			result := rt.executor.Deploy(cmd.Context(), strategy, args[1], envOverrides, network)
			rt.persistResult(cmd.Context(), result)

			if err := printJSON(result); err != nil {
				return err
			}
			if result.Status == domain.StatusFailed {
				return fmt.Errorf("deployment %q failed", args[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Docker network name (default <deployment>-net)")
	cmd.Flags().StringArrayVar(&envFlags, "env", nil, "Environment override, container:KEY=VALUE (repeatable)")
	return cmd
}

func stopCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop <deployment>",
		Short: "Stop a deployment's containers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.executor.Stop(cmd.Context(), args[0], timeout)
			if err != nil {
				return err
			}
			rt.persistResult(cmd.Context(), result)
			return printJSON(result)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop grace period (default from config)")
	return cmd
}

func removeCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "remove <deployment>",
		Short: "Stop and remove a deployment's containers and network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.executor.Remove(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			if err := rt.store.DeleteDeployment(cmd.Context(), args[0]); err != nil {
				rt.logger.Warn("failed to delete deployment record", "deployment", args[0], "error", err)
			}
			return printJSON(result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove without stopping first")
	return cmd
}

func listCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			results, err := rt.executor.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func inspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <deployment>",
		Short: "Show the runtime state of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.executor.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

// =============================================================================
// Health Commands
// =============================================================================

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check <container-id>",
		Short: "Run a one-shot health check on a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			record := rt.monitor.Check(cmd.Context(), args[0])
			return printJSON(record)
		},
	}
}

func monitorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor [container-id...]",
		Short: "Watch container health in the foreground",
		Long: "Watch container health in the foreground. Without arguments every " +
			"running managed container is watched. Notifications are logged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.monitor.AddNotifier(monitor.NewLogNotifier(rt.logger))

			if len(args) > 0 {
				for _, id := range args {
					rt.monitor.Add(id)
				}
			} else {
				results, err := rt.executor.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, result := range results {
					for _, c := range result.Containers {
						if c.State == "running" && c.ContainerID != "" {
							rt.monitor.Add(c.ContainerID)
						}
					}
				}
			}

			if len(rt.monitor.Watching()) == 0 {
				return fmt.Errorf("no containers to watch")
			}
			rt.logger.Info("watching containers", "count", len(rt.monitor.Watching()))

			rt.monitor.Start()
			defer rt.monitor.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
}
