// Command splinterd runs a single splinter node: it loads a YAML node
// configuration, assembles the mesh/admin/scabbard stack, and blocks
// serving connections until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/splinter-rs/splinter-go/config"
	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/node"
)

var rootCmd = &cobra.Command{
	Use:   "splinterd",
	Short: "Run a splinter node",
	Long: `splinterd loads a node's YAML configuration, assembles its mesh,
admin, and scabbard services, and serves circuit and two-phase-commit
traffic until interrupted.`,
}

func main() {
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the node daemon",
		RunE:  runDaemon,
	}
	cmd.Flags().String("config", "splinterd.yaml", "path to the node's YAML configuration")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := log.New(log.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	n, err := node.New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("assembling node: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("splinterd starting", "node_id", cfg.NodeID, "endpoints", cfg.Endpoints)
	n.Run(ctx)

	logger.Info("splinterd shutting down")
	return n.Shutdown()
}
