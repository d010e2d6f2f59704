package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/agent"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/logging"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/telemetry"
)

// NewSolveCmd runs one quiz chain in-process and prints its report.
func NewSolveCmd(opts *Options) *cobra.Command {
	var (
		url    string
		email  string
		secret string
		extra  []string
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a quiz chain starting at --url without the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if strings.TrimSpace(url) == "" {
				return fmt.Errorf("--url is required")
			}
			if secret == "" {
				secret = cfg.Server.Secret
			}
			fields, err := parseExtra(extra)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer shutdown(context.Background()) //nolint:errcheck // best-effort

			supervisor, cleanup, err := agent.NewFromConfig(cfg, logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer cleanup() //nolint:errcheck // best-effort

			ctx, cancel := context.WithTimeout(ctx, cfg.Agent.ChainTimeout)
			defer cancel()

			report, err := supervisor.Run(ctx, quiz.TaskRequest{Email: email, Secret: secret, URL: url, Extra: fields})
			printReport(cmd, report)
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "First quiz URL")
	cmd.Flags().StringVar(&email, "email", "", "Email sent with every submission")
	cmd.Flags().StringVar(&secret, "secret", "", "Secret sent with every submission (default: server.secret)")
	cmd.Flags().StringArrayVar(&extra, "extra", nil, "Additional task metadata as key=value (repeatable)")
	return cmd
}

func parseExtra(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --extra %q, expected key=value", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

func printReport(cmd *cobra.Command, report agent.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %d attempt(s)\n", report.RunID, report.Attempts)
	for i, u := range report.Visited {
		fmt.Fprintf(out, "  %d. %s\n", i+1, u)
	}
	if report.Attempts > 0 {
		fmt.Fprintf(out, "last result: correct=%v reason=%q\n", report.Last.Correct, report.Last.Reason)
	}
}
