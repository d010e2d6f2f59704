package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
)

// Classifier picks a profile for a page.
type Classifier interface {
	Classify(ctx context.Context, metadata map[string]any, snapshot string) quiz.Profile
}

// TaskSolver solves a single quiz URL.
type TaskSolver interface {
	Solve(ctx context.Context, sess browser.Session, task Task) (quiz.SubmissionResult, error)
}

// SupervisorConfig tunes the outer loop.
type SupervisorConfig struct {
	HintChars  int
	RetryPause time.Duration
}

// Supervisor owns one browser session per chain and follows grading responses
// from URL to URL. It has no hop limit: the caller's deadline bounds the chain.
type Supervisor struct {
	launcher  browser.Launcher
	perceiver *Perceiver
	router    Classifier
	solver    TaskSolver
	cfg       SupervisorConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewSupervisor(launcher browser.Launcher, perceiver *Perceiver, router Classifier, solver TaskSolver, cfg SupervisorConfig, logger *zap.Logger, metrics *observability.Metrics) *Supervisor {
	if cfg.HintChars <= 0 {
		cfg.HintChars = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		launcher:  launcher,
		perceiver: perceiver,
		router:    router,
		solver:    solver,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run drives a whole chain starting at req.URL. The session is released on every
// exit path, and a panic below this point ends the chain with an error instead of
// escaping.
func (s *Supervisor) Run(ctx context.Context, req quiz.TaskRequest) (report Report, err error) {
	report.RunID = uuid.NewString()
	logger := s.logger.With(zap.String("run_id", report.RunID), zap.String("email", req.Email))

	if strings.TrimSpace(req.URL) == "" {
		logger.Warn("task has no url; nothing to solve")
		return report, nil
	}

	ctx, span := tracer.Start(ctx, "supervisor.chain", trace.WithAttributes(attribute.String("run_id", report.RunID)))
	start := time.Now()
	s.metrics.IncActiveChains()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chain panicked: %v", r)
			logger.Error("chain aborted", zap.Any("panic", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.DecActiveChains()
		s.metrics.RecordChain(chainResult(report, err), time.Since(start))
		logger.Info("chain finished",
			zap.Int("hops", len(report.Visited)),
			zap.Int("attempts", report.Attempts),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
	}()

	sess, err := s.launcher.Open(ctx)
	if err != nil {
		return report, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("closing browser session", zap.Error(cerr))
		}
	}()

	current := req.URL
	report.Visited = append(report.Visited, current)
	var (
		hint    string
		profile quiz.Profile
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Attempts++

		res, err := s.hop(ctx, logger, sess, req, current, &hint, &profile)
		if err != nil {
			return report, err
		}
		if res == nil {
			continue
		}
		report.Last = *res

		outcome := quiz.Decide(*res)
		s.metrics.RecordHop(outcome.Kind.String())
		switch outcome.Kind {
		case quiz.OutcomeContinue:
			logger.Info("advancing to next quiz", zap.String("from", current), zap.String("to", outcome.NextURL), zap.Bool("correct", res.Correct))
			current = outcome.NextURL
			report.Visited = append(report.Visited, current)
			hint, profile = "", ""
		case quiz.OutcomeDone:
			logger.Info("chain complete", zap.String("url", current))
			report.Outcome = outcome
			return report, nil
		case quiz.OutcomeRetry:
			logger.Info("answer rejected; retrying", zap.String("url", current), zap.String("reason", outcome.Reason))
			hint = retryHint(outcome.Reason)
		}
		report.Outcome = outcome
	}
}

// hop navigates to url and runs the solver once. A nil result with a nil error
// means navigation failed and the attempt should be repeated.
func (s *Supervisor) hop(ctx context.Context, logger *zap.Logger, sess browser.Session, req quiz.TaskRequest, url string, hint *string, profile *quiz.Profile) (*quiz.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "supervisor.hop", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	if err := sess.Navigate(ctx, url); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("navigation failed", zap.String("url", url), zap.Error(err))
		s.metrics.RecordHop("navigation_error")
		return nil, sleep(ctx, s.cfg.RetryPause)
	}

	if landed, err := sess.URL(ctx); err == nil && landed != url {
		logger.Info("navigation redirected", zap.String("url", url), zap.String("landed", landed))
		span.SetAttributes(attribute.String("landed_url", landed))
	}

	snapshot := s.perceiver.Snapshot(ctx, sess)
	if *hint == "" {
		*hint = textclean.Excerpt(textclean.CleanHTML(snapshot), s.cfg.HintChars)
	}
	if *profile == "" {
		*profile = s.router.Classify(ctx, req.Metadata(), snapshot)
	}
	span.SetAttributes(attribute.String("profile", string(*profile)))

	res, err := s.solver.Solve(ctx, sess, Task{Request: req, URL: url, Hint: *hint, Profile: *profile, Snapshot: snapshot})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func chainResult(report Report, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case err != nil:
		return "error"
	case report.Outcome.Kind == quiz.OutcomeDone && report.Attempts > 0:
		return "done"
	default:
		return "skipped"
	}
}
