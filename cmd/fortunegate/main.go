package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fortunegate/internal/config"
	"fortunegate/pkg/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "fortunegate",
	Short:         "LLM fortune gateway with a cohort result pool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		logger, err = logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel})
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, poolCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Printf("fortunegate: %v", err)
		os.Exit(1)
	}
}
