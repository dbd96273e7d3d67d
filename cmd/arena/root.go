package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-arena/internal/config"
	"github.com/ahrav/go-arena/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "arena",
	Short:         "Blind side-by-side evaluation of two generative backends",
	Long:          "Arena generates questions about a document with backend A, collects answers from backends A and B, and lets an operator judge them blind.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "arena.yaml", "Path to the YAML config file (optional)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config and installs the logger.
// The returned closer releases the log file, if any.
func loadConfig(cmd *cobra.Command, defaultLogFile string) (*config.Config, io.Closer, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := cmd.Flags().Changed("config")

	cfg, err := config.Load(path, !explicit)
	if err != nil {
		return nil, nil, err
	}

	logFile, _ := cmd.Flags().GetString("log-file")
	if logFile == "" {
		logFile = defaultLogFile
	}
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w, closer = f, f
	}
	if _, err := logging.Setup(w, cfg.Logging); err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return &cfg, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
