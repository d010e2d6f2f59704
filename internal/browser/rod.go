package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
)

// ErrNoElement is wrapped by SelectorError when nothing matches.
var ErrNoElement = errors.New("no matching element")

// runningBrowser is one started browser process that hands out sessions.
type runningBrowser interface {
	open(ctx context.Context) (Session, error)
	close() error
}

// RodLauncher owns one Chrome process and opens an incognito context per session.
// A browser that stops answering is discarded and started again on the next Open.
type RodLauncher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	start  func() (runningBrowser, error)

	mu      sync.Mutex
	current runningBrowser
}

// NewRodLauncher prepares a launcher; Chrome starts lazily on the first Open.
func NewRodLauncher(cfg config.BrowserConfig, logger *zap.Logger) *RodLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RodLauncher{cfg: cfg, logger: logger}
	l.start = l.startChrome
	return l
}

func (l *RodLauncher) connect() (runningBrowser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		return l.current, nil
	}
	b, err := l.start()
	if err != nil {
		return nil, err
	}
	l.current = b
	l.logger.Info("browser started", zap.Bool("headless", l.cfg.Headless))
	return b, nil
}

// discard drops b if it is still the current browser.
func (l *RodLauncher) discard(b runningBrowser) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != b {
		return
	}
	if err := b.close(); err != nil {
		l.logger.Debug("closing dead browser", zap.Error(err))
	}
	l.current = nil
}

// Open creates an isolated page with the configured viewport and user agent. When
// the running browser cannot create one, it is restarted once.
func (l *RodLauncher) Open(ctx context.Context) (Session, error) {
	b, err := l.connect()
	if err != nil {
		return nil, err
	}
	sess, err := b.open(ctx)
	if err == nil {
		return sess, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	l.logger.Warn("browser unusable; restarting", zap.Error(err))
	l.discard(b)
	if b, err = l.connect(); err != nil {
		return nil, err
	}
	return b.open(ctx)
}

// Close kills the Chrome process.
func (l *RodLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return nil
	}
	err := l.current.close()
	l.current = nil
	return err
}

func (l *RodLauncher) startChrome() (runningBrowser, error) {
	lc := launcher.New().
		Leakless(true).
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)
	if l.cfg.Bin != "" {
		lc = lc.Bin(l.cfg.Bin)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		lc.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &chrome{cfg: l.cfg, logger: l.logger, launch: lc, browser: b}, nil
}

type chrome struct {
	cfg     config.BrowserConfig
	logger  *zap.Logger
	launch  *launcher.Launcher
	browser *rod.Browser
}

func (c *chrome) open(ctx context.Context) (Session, error) {
	incognito, err := c.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	incognito = incognito.Context(context.Background())

	var page *rod.Page
	if c.cfg.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if c.cfg.ViewportWidth > 0 && c.cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  c.cfg.ViewportWidth,
			Height: c.cfg.ViewportHeight,
		}); err != nil {
			c.logger.Warn("set viewport failed", zap.Error(err))
		}
	}
	if c.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.cfg.UserAgent}); err != nil {
			c.logger.Warn("set user agent failed", zap.Error(err))
		}
	}

	return &rodSession{cfg: c.cfg, ctxBrowser: incognito, page: page}, nil
}

func (c *chrome) close() error {
	err := c.browser.Close()
	c.launch.Kill()
	c.launch.Cleanup()
	return err
}

type rodSession struct {
	cfg        config.BrowserConfig
	ctxBrowser *rod.Browser
	page       *rod.Page
	closeOnce  sync.Once
	closeErr   error
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigateTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (s *rodSession) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return s.page.Context(ctx).Timeout(timeout).WaitStable(300 * time.Millisecond)
}

func (s *rodSession) Text(ctx context.Context, selector string) (string, error) {
	has, el, err := s.page.Context(ctx).Has(selector)
	if err != nil {
		return "", &SelectorError{Selector: selector, Err: err}
	}
	if !has {
		return "", &SelectorError{Selector: selector, Err: ErrNoElement}
	}
	text, err := el.Text()
	if err != nil {
		return "", &SelectorError{Selector: selector, Err: err}
	}
	return strings.TrimSpace(text), nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.cfg.ActionTimeout).Element(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	return el, nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &SelectorError{Selector: selector, Err: err}
	}
	return nil
}

func (s *rodSession) Fill(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return &SelectorError{Selector: selector, Err: err}
	}
	if err := el.Input(text); err != nil {
		return &SelectorError{Selector: selector, Err: err}
	}
	return nil
}

func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, nil)
}

func (s *rodSession) URL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close disposes the incognito context. Repeated calls return the first result.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.page.Close()
		s.closeErr = s.ctxBrowser.Close()
	})
	return s.closeErr
}
