package agent

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter assumes four bytes per token.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// loadEncoding fetches BPE ranks, downloading them when they are not cached.
var loadEncoding = tiktoken.GetEncoding

// tiktokenCounter loads the BPE ranks in the background. Until they arrive,
// or if they never do, Count uses the estimate.
type tiktokenCounter struct {
	ready chan struct{}
	enc   *tiktoken.Tiktoken
}

// NewTokenCounter returns a tiktoken-backed counter for the named encoding.
// It never blocks callers on the rank download.
func NewTokenCounter(encoding string) TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	c := &tiktokenCounter{ready: make(chan struct{})}
	load := loadEncoding
	go func() {
		defer close(c.ready)
		if enc, err := load(encoding); err == nil {
			c.enc = enc
		}
	}()
	return c
}

func (c *tiktokenCounter) Count(text string) int {
	select {
	case <-c.ready:
		if c.enc != nil {
			return len(c.enc.Encode(text, nil, nil))
		}
	default:
	}
	return EstimateCounter{}.Count(text)
}
