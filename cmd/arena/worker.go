package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-arena/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker hosting the arena workflow and activities",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logCloser, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	defer logCloser.Close()

	llmClient, err := worker.InitializeLLMClient(cfg)
	if err != nil {
		return err
	}
	defer llmClient.Close()

	acts, err := worker.InitializeActivities(cfg, llmClient, nil)
	if err != nil {
		return err
	}

	c, err := worker.Dial(cfg.Temporal, slog.Default())
	if err != nil {
		return err
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal, acts)
	slog.Info("arena worker starting",
		"host_port", cfg.Temporal.HostPort,
		"namespace", cfg.Temporal.Namespace,
		"task_queue", cfg.Temporal.TaskQueue)
	return w.Run(sdkworker.InterruptCh())
}
