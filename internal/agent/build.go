package agent

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/configbuilder"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/logging"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

// NewFromConfig assembles a Supervisor with a real browser, model registry and
// tool broker. The returned cleanup shuts the shared browser down.
func NewFromConfig(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Supervisor, func() error, error) {
	registry, err := configbuilder.BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	broker := tools.NewBroker(cfg.Tools, tools.Dependencies{
		HTTPClient:  &http.Client{},
		Runner:      tools.NewSandbox(cfg.Sandbox),
		Vision:      registry,
		VisionModel: cfg.Profiles.VisionModel,
		Logger:      logging.Component(logger, "tools"),
		Metrics:     metrics,
	})
	perceiver := NewPerceiver(cfg.Browser, logging.Component(logger, "perceiver"))
	router := NewRouter(registry, cfg.Profiles.RouterModel, FallbackProfile(cfg.Profiles), cfg.Agent.RouterChars, logging.Component(logger, "router"), metrics)
	solver := NewSolver(registry, broker, perceiver, NewProfileSet(cfg.Profiles), NewTokenCounter(cfg.Agent.TokenEncoding), SolverConfig{
		MaxSteps:         cfg.Agent.MaxSteps,
		PageChars:        cfg.Agent.PageChars,
		MaxContextTokens: cfg.Agent.MaxContextTokens,
		ModelErrorPause:  cfg.Agent.ModelErrorPause,
		MaxTokens:        cfg.Agent.MaxTokens,
		Temperature:      cfg.Agent.Temperature,
	}, logging.Component(logger, "solver"), metrics)

	launcher := browser.NewRodLauncher(cfg.Browser, logging.Component(logger, "browser"))
	sup := NewSupervisor(launcher, perceiver, router, solver, SupervisorConfig{
		HintChars:  cfg.Agent.HintChars,
		RetryPause: cfg.Agent.RetryPause,
	}, logging.Component(logger, "supervisor"), metrics)
	return sup, launcher.Close, nil
}
