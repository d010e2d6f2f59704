package cli

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/configbuilder"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/logging"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	var checkBrowser bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d\n", len(cfg.Providers), len(cfg.Models))
			fmt.Fprintf(out, "Sandbox enabled: %v, metrics: %v\n", cfg.Sandbox.Enabled, cfg.Server.MetricsEnabled)

			registry, err := configbuilder.BuildRegistryFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("build model registry: %w", err)
			}
			for _, name := range registry.Models() {
				tier := ""
				if registry.IsExpensive(name) {
					tier = " (expensive)"
				}
				fmt.Fprintf(out, "  model %s%s\n", name, tier)
			}
			if cfg.Server.Secret == "" {
				fmt.Fprintln(out, "Warning: server.secret is empty; POST /quiz will answer 500")
			}
			if cfg.Sandbox.Enabled && len(cfg.Sandbox.Interpreter) > 0 {
				if path, err := exec.LookPath(cfg.Sandbox.Interpreter[0]); err != nil {
					fmt.Fprintf(out, "Warning: interpreter %q not found on PATH\n", cfg.Sandbox.Interpreter[0])
				} else {
					fmt.Fprintf(out, "Interpreter: %s\n", path)
				}
			}

			if !checkBrowser {
				return nil
			}
			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			launcher := browser.NewRodLauncher(cfg.Browser, logger)
			defer launcher.Close() //nolint:errcheck // best-effort
			sess, err := launcher.Open(cmd.Context())
			if err != nil {
				return fmt.Errorf("browser check: %w", err)
			}
			defer sess.Close() //nolint:errcheck // best-effort
			fmt.Fprintln(out, "Browser OK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkBrowser, "browser", false, "Also launch the headless browser once")
	return cmd
}
