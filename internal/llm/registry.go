package llm

import (
	"context"
	"fmt"
	"sort"
)

// ModelRoute binds a logical model to a provider and physical model name.
type ModelRoute struct {
	Name        string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Registry resolves logical models to providers and tracks metadata (expensive flags).
type Registry struct {
	providers    map[string]Provider
	models       map[string]ModelRoute
	defaultModel string
	expensive    map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]ModelRoute),
		expensive: make(map[string]bool),
	}
}

// RegisterProvider adds a provider implementation.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.providers[name] = p
}

// RegisterModel adds a model route.
func (r *Registry) RegisterModel(name string, route ModelRoute, isDefault bool) {
	route.Name = name
	r.models[name] = route
	if isDefault || r.defaultModel == "" {
		r.defaultModel = name
	}
}

// MarkExpensive flags a model so callers can log costly selections.
func (r *Registry) MarkExpensive(modelID string, expensive bool) {
	r.expensive[modelID] = expensive
}

// IsExpensive reports whether a model is marked expensive.
func (r *Registry) IsExpensive(modelID string) bool {
	return r.expensive[modelID]
}

// Models lists registered logical model names in sorted order.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.models))
	for name := range r.models {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the provider and route for a given model name (default if empty).
func (r *Registry) Resolve(modelName string) (Provider, ModelRoute, error) {
	if modelName == "" {
		modelName = r.defaultModel
	}

	route, ok := r.models[modelName]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("model %q not registered", modelName)
	}

	p, ok := r.providers[route.Provider]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("provider %q not registered for model %q", route.Provider, modelName)
	}

	return p, route, nil
}

// Chat resolves the logical model and sends the request to its provider. Route
// parameters fill in the physical model name and any temperature or token cap the
// request leaves unset.
func (r *Registry) Chat(ctx context.Context, model string, req ChatRequest) (ChatResponse, error) {
	p, route, err := r.Resolve(model)
	if err != nil {
		return ChatResponse{}, err
	}
	req.Model = route.Model
	if req.Temperature == 0 {
		req.Temperature = route.Temperature
	}
	if route.MaxTokens > 0 && (req.MaxTokens == 0 || req.MaxTokens > route.MaxTokens) {
		req.MaxTokens = route.MaxTokens
	}
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s/%s: %w", p.Name(), route.Model, err)
	}
	return resp, nil
}
