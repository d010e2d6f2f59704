// Package browser drives a headless browser for one quiz chain at a time.
package browser

import (
	"context"
	"fmt"
	"time"
)

// Session is one isolated browser tab. It is not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitIdle blocks until the page stops changing or the timeout elapses.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	// Text returns the visible text of the first element matching selector
	// without waiting for it to appear.
	Text(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
	Close() error
}

// Launcher hands out fresh sessions.
type Launcher interface {
	Open(ctx context.Context) (Session, error)
	Close() error
}

// SelectorError reports an element that could not be found or acted on.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }
