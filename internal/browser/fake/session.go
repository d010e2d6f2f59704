// Package fake provides an in-memory browser.Session for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/browser"
)

// Page is the canned content served for one URL.
type Page struct {
	HTML string
	// Texts maps selectors to visible text; missing selectors fail like an absent element.
	Texts map[string]string
}

// Session is a scripted browser.Session. Zero value is usable.
type Session struct {
	mu sync.Mutex

	Pages       map[string]Page
	NavigateErr error
	ScreenPNG   []byte
	// Clickable lists selectors Click and Fill accept; nil accepts everything.
	Clickable map[string]bool

	Visited []string
	Clicks  []string
	Fills   map[string]string
	Closes  int
	current string
}

func (s *Session) page() Page {
	return s.Pages[s.current]
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.Visited = append(s.Visited, url)
	s.current = url
	return nil
}

func (s *Session) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.page().Texts[selector]
	if !ok {
		return "", &browser.SelectorError{Selector: selector, Err: browser.ErrNoElement}
	}
	return text, nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page().HTML, nil
}

func (s *Session) accepts(selector string) bool {
	return s.Clickable == nil || s.Clickable[selector]
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(selector) {
		return &browser.SelectorError{Selector: selector, Err: browser.ErrNoElement}
	}
	s.Clicks = append(s.Clicks, selector)
	return nil
}

func (s *Session) Fill(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(selector) {
		return &browser.SelectorError{Selector: selector, Err: browser.ErrNoElement}
	}
	if s.Fills == nil {
		s.Fills = make(map[string]string)
	}
	s.Fills[selector] = text
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.ScreenPNG, nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closes++
	return nil
}

// Launcher always returns the same Session.
type Launcher struct {
	Session *Session
	OpenErr error
	Opens   int
}

func (l *Launcher) Open(ctx context.Context) (browser.Session, error) {
	l.Opens++
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	return l.Session, nil
}

func (l *Launcher) Close() error { return nil }
