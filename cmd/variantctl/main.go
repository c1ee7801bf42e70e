// variantctl is the operator tool for the variant-selection controller:
// inspect learned state, replay recorded fixtures, and run synthetic
// simulations across the selection policies.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danielpatrickdp/variant-controller/internal/config"
	"github.com/danielpatrickdp/variant-controller/internal/controller"
	"github.com/danielpatrickdp/variant-controller/internal/replay"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "variantctl",
	Short: "Operate the adaptive variant-selection controller",
	Long: `variantctl manages the learned state of the variant-selection
controller: per-arm statistics, rollback history, promotion gating,
fixture replay, and synthetic policy simulations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// statsCmd prints learned policy state and rollback history
var statsCmd = &cobra.Command{
	Use:   "stats [agent] [task-type]",
	Short: "Show learned statistics for one agent and task type",
	Args:  cobra.ExactArgs(2),
	RunE:  runStats,
}

// registerCmd makes a variant selectable
var registerCmd = &cobra.Command{
	Use:   "register [agent] [variant]",
	Short: "Register a variant for an agent (idempotent)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRegister,
}

// replayCmd re-runs a recorded fixture through a fresh policy
var replayCmd = &cobra.Command{
	Use:   "replay [fixture.json]",
	Short: "Replay a recorded fixture and check its expectations",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runStats(cmd *cobra.Command, args []string) error {
	agent, taskType := args[0], args[1]

	c, err := openController()
	if err != nil {
		return err
	}
	defer c.Close()

	stats := c.Statistics(agent, taskType)
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	events, err := c.RollbackHistory()
	if err != nil {
		return fmt.Errorf("read rollback history: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("no rollback events")
		return nil
	}
	fmt.Printf("%d rollback event(s):\n", len(events))
	for _, ev := range events {
		fmt.Printf("  %s  %s/%s  %s → %s  (%s)\n",
			ev.Timestamp.Format("2006-01-02 15:04"),
			ev.Agent, ev.TaskType, ev.FromArm, ev.ToArm, ev.Reason)
	}
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	agent, variant := args[0], args[1]

	c, err := openController()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.RegisterVariant(agent, variant); err != nil {
		return fmt.Errorf("register variant: %w", err)
	}
	fmt.Printf("registered %s for %s\n", variant, agent)
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	fixture, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}

	results, err := replay.Run(fixture.ToRunConfig(), fixture.ToSteps())
	if err != nil {
		return err
	}
	summary := replay.Summarize(results)

	fmt.Printf("%s\n", fixture.Description)
	fmt.Printf("  steps: %d  total reward: %.3f  explorations: %d\n",
		summary.Steps, summary.TotalReward, summary.Explorations)
	for arm, pulls := range summary.Pulls {
		fmt.Printf("  %s: %d pulls\n", arm, pulls)
	}

	if err := fixture.Verify(summary); err != nil {
		return fmt.Errorf("expectation failed: %w", err)
	}
	fmt.Println("expectations met")
	return nil
}

func openController() (*controller.Controller, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return controller.New(cfg, nil, logger)
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "variantctl.yaml", "path to YAML config")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
