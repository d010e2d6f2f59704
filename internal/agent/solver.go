package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/tools"
)

// Broker executes one decoded action.
type Broker interface {
	Invoke(ctx context.Context, env tools.Env, a tools.Action) tools.Result
}

// SolverConfig bounds one solving attempt.
type SolverConfig struct {
	MaxSteps         int
	PageChars        int
	MaxContextTokens int
	ModelErrorPause  time.Duration
	MaxTokens        int
	Temperature      float64
}

// Solver runs the perceive-think-act loop for a single quiz URL.
type Solver struct {
	client    llm.Client
	broker    Broker
	perceiver *Perceiver
	profiles  ProfileSet
	counter   TokenCounter
	cfg       SolverConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewSolver(client llm.Client, broker Broker, perceiver *Perceiver, profiles ProfileSet, counter TokenCounter, cfg SolverConfig, logger *zap.Logger, metrics *observability.Metrics) *Solver {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 15
	}
	if cfg.PageChars <= 0 {
		cfg.PageChars = 20000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = EstimateCounter{}
	}
	return &Solver{
		client:    client,
		broker:    broker,
		perceiver: perceiver,
		profiles:  profiles,
		counter:   counter,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Solve iterates until the model submits an answer or the step budget runs out.
// Budget exhaustion is a failed SubmissionResult; the only error is cancellation
// of ctx.
func (s *Solver) Solve(ctx context.Context, sess browser.Session, task Task) (quiz.SubmissionResult, error) {
	spec := s.profiles.Spec(task.Profile)
	logger := s.logger.With(zap.String("url", task.URL), zap.String("profile", string(spec.Profile)))
	conv := NewConversation(systemPrompt(spec), taskPrompt(task), s.counter, s.cfg.MaxContextTokens)
	env := tools.Env{Session: sess, Task: task.Request, PageURL: task.URL}

	var pending string
	for step := 1; step <= s.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return quiz.SubmissionResult{}, err
		}
		s.metrics.RecordStep(string(spec.Profile))

		stepCtx, span := tracer.Start(ctx, "solver.step", trace.WithAttributes(
			attribute.Int("step", step),
			attribute.String("profile", string(spec.Profile)),
		))
		res, next, err := s.step(stepCtx, sess, env, spec, conv, task.Snapshot, pending, step)
		span.End()
		if err != nil {
			return quiz.SubmissionResult{}, err
		}
		if res != nil {
			logger.Info("answer submitted", zap.Int("step", step), zap.Bool("correct", res.Correct))
			return *res, nil
		}
		pending = next
	}

	logger.Warn("step budget exhausted", zap.Int("max_steps", s.cfg.MaxSteps), zap.Int("dropped_messages", conv.Dropped()))
	return quiz.SubmissionResult{
		Correct: false,
		Reason:  fmt.Sprintf("step budget of %d steps exhausted without submitting an answer", s.cfg.MaxSteps),
	}, nil
}

// step runs one iteration. It returns the submission when the loop is done, or
// the feedback to carry into the next iteration.
func (s *Solver) step(ctx context.Context, sess browser.Session, env tools.Env, spec ProfileSpec, conv *Conversation, snapshot, pending string, step int) (*quiz.SubmissionResult, string, error) {
	page := snapshot
	switch {
	case step > 1:
		page = s.perceiver.Markup(ctx, sess)
	case page == "":
		page = s.perceiver.Snapshot(ctx, sess)
	}
	conv.AddFeedback(feedbackMessage(pending, textclean.Truncate(page, s.cfg.PageChars), step, s.cfg.MaxSteps))

	resp, err := s.client.Chat(ctx, spec.Model, llm.ChatRequest{
		Messages:    conv.Messages(),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		s.logger.Warn("model call failed", zap.Int("step", step), zap.Error(err))
		s.metrics.RecordModelFailure(string(spec.Profile), spec.Model)
		if err := sleep(ctx, s.cfg.ModelErrorPause); err != nil {
			return nil, "", err
		}
		return nil, fmt.Sprintf("Your previous turn failed: the model call returned an error (%v). Reply with exactly one JSON action.", err), nil
	}
	conv.AddModelOutput(resp.Message.Content)

	action, err := tools.DecodeAction(resp.Message.Content)
	if err != nil {
		return nil, fmt.Sprintf("Your reply could not be parsed as a JSON action: %v. Reply with one JSON object, for example {\"tool\": \"click\", \"selector\": \"#start\"}.", err), nil
	}
	if action.Kind != tools.KindUnrecognized && !spec.Allows(action.Kind) {
		return nil, fmt.Sprintf("Error: tool %q is not available here. Available tools: %s.", action.Name, toolNames(spec.Tools)), nil
	}
	s.logger.Debug("action decoded", zap.Int("step", step), zap.String("tool", action.Name), zap.String("thought", action.Thought))

	result := s.broker.Invoke(ctx, env, action)
	if result.Submission != nil {
		return result.Submission, "", nil
	}
	return nil, fmt.Sprintf("Result of %s:\n%s", action.Name, result.Output), nil
}

func toolNames(kinds []tools.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// sleep pauses for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
