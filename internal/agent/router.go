package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/observability"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/quiz"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/textclean"
)

// Router picks a profile for a quiz page with one cheap model call.
type Router struct {
	client   llm.Client
	model    string
	fallback quiz.Profile
	maxChars int
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewRouter(client llm.Client, model string, fallback quiz.Profile, maxChars int, logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == "" {
		fallback = quiz.ProfilePro
	}
	return &Router{client: client, model: model, fallback: fallback, maxChars: maxChars, logger: logger, metrics: metrics}
}

// Classify always returns a profile. A failed call yields the fallback.
func (r *Router) Classify(ctx context.Context, metadata map[string]any, snapshot string) quiz.Profile {
	ctx, span := tracer.Start(ctx, "router.classify")
	defer span.End()

	excerpt := textclean.Excerpt(textclean.CleanHTML(snapshot), r.maxChars)
	resp, err := r.client.Chat(ctx, r.model, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: routerSystem},
			{Role: llm.RoleUser, Content: routerPrompt(metadata, excerpt)},
		},
		MaxTokens: 10,
	})
	if err != nil {
		r.logger.Warn("routing failed; using fallback profile", zap.String("profile", string(r.fallback)), zap.Error(err))
		r.metrics.RecordModelFailure("router", r.model)
		r.metrics.RecordRoute(string(r.fallback), "fallback")
		return r.fallback
	}

	profile := matchProfile(resp.Message.Content)
	r.logger.Info("page routed", zap.String("profile", string(profile)), zap.String("reply", resp.Message.Content))
	r.metrics.RecordRoute(string(profile), "model")
	return profile
}

// matchProfile maps free text to a profile. CODE is checked before PRO, and
// anything unmatched is SIMPLE.
func matchProfile(answer string) quiz.Profile {
	up := strings.ToUpper(answer)
	switch {
	case strings.Contains(up, string(quiz.ProfileCode)):
		return quiz.ProfileCode
	case strings.Contains(up, string(quiz.ProfilePro)):
		return quiz.ProfilePro
	default:
		return quiz.ProfileSimple
	}
}
