package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/daemon"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/logging"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/telemetry"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/version"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:     "quizagentd",
		Short:   "Quiz agent daemon: accepts tasks over HTTP and solves them in the background",
		Version: version.Full(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort
			logger.Info("quizagentd starting", version.Fields()...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn("telemetry shutdown", zap.Error(err))
				}
			}()

			server, err := daemon.NewServer(cfg, logger)
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "Path to config file (default: configs/config.yaml)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
