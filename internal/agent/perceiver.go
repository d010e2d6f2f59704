package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
)

// Perceiver reduces a rendered page to text for the model.
type Perceiver struct {
	resultSelector string
	idle           time.Duration
	logger         *zap.Logger
}

func NewPerceiver(cfg config.BrowserConfig, logger *zap.Logger) *Perceiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Perceiver{resultSelector: cfg.ResultSelector, idle: cfg.IdleTimeout, logger: logger}
}

// Snapshot waits for the page to settle and returns the first non-empty of: the
// result container text, the body text, the raw markup. It never fails; an
// unreadable page yields "".
func (p *Perceiver) Snapshot(ctx context.Context, sess browser.Session) string {
	if err := sess.WaitIdle(ctx, p.idle); err != nil {
		p.logger.Debug("page did not settle", zap.Error(err))
	}
	if p.resultSelector != "" {
		if text, err := sess.Text(ctx, p.resultSelector); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
	}
	if text, err := sess.Text(ctx, "body"); err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	html, err := sess.HTML(ctx)
	if err != nil {
		p.logger.Debug("page unreadable", zap.Error(err))
		return ""
	}
	return html
}

// Markup returns the current page markup so the model can see selectors,
// falling back to Snapshot when the markup is unavailable.
func (p *Perceiver) Markup(ctx context.Context, sess browser.Session) string {
	html, err := sess.HTML(ctx)
	if err != nil || strings.TrimSpace(html) == "" {
		return p.Snapshot(ctx, sess)
	}
	return html
}
