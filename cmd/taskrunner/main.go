package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corerun/taskrunner/internal/config"
	"github.com/corerun/taskrunner/internal/gitcoord"
	"github.com/corerun/taskrunner/internal/logging"
	"github.com/corerun/taskrunner/internal/orchestrator"
	"github.com/corerun/taskrunner/internal/store"
	"github.com/corerun/taskrunner/internal/taskstate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	verbose    bool
	projectDir string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskrunner",
		Short:         "Drives a queue of coding tasks through plan/implement/verify/review/commit",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	root.PersistentFlags().StringVar(&projectDir, "project-dir", "", "Project directory (defaults to the detected repo root)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		return nil
	}

	root.AddCommand(runCmd())
	root.AddCommand(statusCmd())
	root.CompletionOptions.DisableDefaultCmd = false
	return root
}

func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return filepath.Abs(projectDir)
	}
	if root := config.RepoRoot(); root != "" {
		return root, nil
	}
	return os.Getwd()
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Drive every ready task in the queue through its pipeline until none remain runnable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			dir, err := resolveProjectDir()
			if err != nil {
				return fmt.Errorf("resolving project directory: %w", err)
			}
			stateDir := filepath.Join(dir, ".taskrunner")

			taskStore := store.NewTaskStore(filepath.Join(stateDir, "tasks.yaml"))
			deps := orchestrator.Deps{
				Cfg:        *cfg,
				GitCoord:   gitcoord.New(),
				ProjectDir: dir,
				StateDir:   stateDir,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return orchestrator.NewLoop(deps, taskStore).Run(ctx)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the lifecycle and step of every task in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveProjectDir()
			if err != nil {
				return fmt.Errorf("resolving project directory: %w", err)
			}
			stateDir := filepath.Join(dir, ".taskrunner")

			taskStore := store.NewTaskStore(filepath.Join(stateDir, "tasks.yaml"))
			queue, err := taskStore.Load()
			if err != nil {
				return fmt.Errorf("loading task queue: %w", err)
			}

			printStatus(cmd, queue.Tasks)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, tasks []taskstate.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks in queue")
		return
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%-24s %-14s %-14s %s", t.ID, t.Lifecycle, t.Step, t.Title)
		if t.Lifecycle == taskstate.LifecycleWaitingHuman && t.BlockReason != "" {
			line += fmt.Sprintf(" (%s)", t.BlockReason)
		}
		fmt.Fprintln(out, line)
	}
}
