package mock

import (
	"context"
	"sync"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
)

// Provider is a test double implementing llm.Provider. Requests are recorded.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)

	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return Reply("mock"), nil
}

// Requests returns a copy of every request seen so far.
func (p *Provider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// Reply builds an assistant response with the given content.
func Reply(content string) llm.ChatResponse {
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: content,
		},
		FinishReason: "stop",
	}
}

// Registry returns a registry whose single default model "mock" is served by p.
func Registry(p *Provider) *llm.Registry {
	reg := llm.NewRegistry()
	reg.RegisterProvider(p.Name(), p)
	reg.RegisterModel("mock", llm.ModelRoute{Provider: p.Name(), Model: "mock-model"}, true)
	return reg
}
