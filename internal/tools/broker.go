package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
)

// Env is the per-invocation context a tool may touch.
type Env struct {
	Session browser.Session
	Task    quiz.TaskRequest
	// PageURL is the quiz page being solved; it is the url field of a submission.
	PageURL string
}

// Result is what a tool hands back to the solving loop. Output is always set and
// is fed to the model verbatim. Submission is set only by a submit_answer call
// that reached the endpoint and got a parseable reply.
type Result struct {
	Output     string
	Submission *quiz.SubmissionResult
	Err        error
}

var errNoSession = errors.New("no browser session")

func failure(output string, err error) Result {
	return Result{Output: output, Err: err}
}

type handler func(ctx context.Context, env Env, a Action) Result

// Dependencies are the collaborators a Broker needs beyond its config.
type Dependencies struct {
	HTTPClient  *http.Client
	Runner      CodeRunner
	Vision      llm.Client
	VisionModel string
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Broker dispatches decoded actions to leaf tools.
type Broker struct {
	cfg         config.ToolsConfig
	http        *http.Client
	runner      CodeRunner
	vision      llm.Client
	visionModel string
	logger      *zap.Logger
	metrics     *observability.Metrics
	handlers    map[Kind]handler
}

// NewBroker wires every action kind to its handler.
func NewBroker(cfg config.ToolsConfig, deps Dependencies) *Broker {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = 10 * time.Second
	}
	if cfg.FileTimeout == 0 {
		cfg.FileTimeout = 15 * time.Second
	}
	if cfg.MaxAnswerBytes == 0 {
		cfg.MaxAnswerBytes = 1 << 20
	}
	if cfg.APIBodyChars == 0 {
		cfg.APIBodyChars = 5000
	}
	if cfg.PDFMaxPages == 0 {
		cfg.PDFMaxPages = 10
	}
	if cfg.TextMaxChars == 0 {
		cfg.TextMaxChars = 10000
	}
	if cfg.CSVMaxChars == 0 {
		cfg.CSVMaxChars = 100000
	}
	if cfg.VisionMaxTokens == 0 {
		cfg.VisionMaxTokens = 500
	}

	b := &Broker{
		cfg:         cfg,
		http:        deps.HTTPClient,
		runner:      deps.Runner,
		vision:      deps.Vision,
		visionModel: deps.VisionModel,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	b.handlers = map[Kind]handler{
		KindClick:      b.click,
		KindFillText:   b.fillText,
		KindCallAPI:    b.callAPI,
		KindReadFile:   b.readFile,
		KindRunPython:  b.runPython,
		KindScreenshot: b.screenshot,
		KindSubmit:     b.submit,
	}
	return b
}

// Invoke validates and runs one action. Tool faults come back as Result.Err with a
// descriptive Output; nothing here aborts the caller's loop.
func (b *Broker) Invoke(ctx context.Context, env Env, a Action) Result {
	h, ok := b.handlers[a.Kind]
	if !ok {
		res := failure(fmt.Sprintf("Error: unknown tool %q. Available tools: %s.", a.Name, kindList(Kinds)), fmt.Errorf("%w %q", ErrUnknownTool, a.Name))
		b.metrics.RecordToolCall("unrecognized", false)
		return res
	}
	if err := ValidateAction(a); err != nil {
		b.metrics.RecordToolCall(string(a.Kind), false)
		return failure(fmt.Sprintf("Error: invalid arguments for %s: %v", a.Kind, err), err)
	}

	start := time.Now()
	res := h(ctx, env, a)
	b.metrics.RecordToolCall(string(a.Kind), res.Err == nil)
	b.logger.Debug("tool invoked",
		zap.String("tool", string(a.Kind)),
		zap.Duration("took", time.Since(start)),
		zap.Error(res.Err),
	)
	return res
}

func kindList(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func (b *Broker) click(ctx context.Context, env Env, a Action) Result {
	selector := a.String("selector")
	if env.Session == nil {
		return failure("Error: no browser session is open.", errNoSession)
	}
	if err := env.Session.Click(ctx, selector); err != nil {
		return failure(fmt.Sprintf("Error clicking element '%s': %v", selector, err), err)
	}
	return Result{Output: fmt.Sprintf("Clicked element '%s'.", selector)}
}

func (b *Broker) fillText(ctx context.Context, env Env, a Action) Result {
	selector := a.String("selector")
	if env.Session == nil {
		return failure("Error: no browser session is open.", errNoSession)
	}
	if err := env.Session.Fill(ctx, selector, a.String("text")); err != nil {
		return failure(fmt.Sprintf("Error filling element '%s': %v", selector, err), err)
	}
	return Result{Output: fmt.Sprintf("Filled element '%s' with the given text.", selector)}
}
