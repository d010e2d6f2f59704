package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/24f2000010/TDS-PROJ2-T32025/internal/config"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm"
	"github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/configbuilder"
	llmmock "github.com/24f2000010/TDS-PROJ2-T32025/internal/llm/mock"
)

func TestRegistryResolve(t *testing.T) {
	reg := llm.NewRegistry()
	mockProvider := &llmmock.Provider{NameValue: "mock"}
	reg.RegisterProvider("mock", mockProvider)
	reg.RegisterModel("default", llm.ModelRoute{
		Provider:    "mock",
		Model:       "dummy",
		Temperature: 0.2,
	}, true)

	p, route, err := reg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, mockProvider, p)
	require.Equal(t, "dummy", route.Model)

	_, _, err = reg.Resolve("missing")
	require.Error(t, err)
}

func TestRegistryChatAppliesRoute(t *testing.T) {
	provider := &llmmock.Provider{NameValue: "mock"}
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", provider)
	reg.RegisterModel("fast", llm.ModelRoute{Provider: "mock", Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 100}, true)

	_, err := reg.Chat(context.Background(), "fast", llm.ChatRequest{MaxTokens: 500})
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "gpt-4o-mini", reqs[0].Model)
	require.Equal(t, 0.3, reqs[0].Temperature)
	require.Equal(t, 100, reqs[0].MaxTokens)
}

func TestRegistryChatWrapsProviderError(t *testing.T) {
	reg := llmmock.Registry(&llmmock.Provider{ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{}, errors.New("boom")
	}})

	_, err := reg.Chat(context.Background(), "", llm.ChatRequest{})
	require.ErrorContains(t, err, "mock/mock-model: boom")
}

func TestRateLimitedHonoursContext(t *testing.T) {
	p := llm.WithRateLimit(&llmmock.Provider{}, 0.001, 1)

	_, err := p.Chat(context.Background(), llm.ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Chat(ctx, llm.ChatRequest{})
	require.Error(t, err)
}

func TestWithRateLimitDisabled(t *testing.T) {
	base := &llmmock.Provider{}
	require.Same(t, base, llm.WithRateLimit(base, 0, 0))
}

func TestBuildRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"aipipe": {Type: "aipipe", BaseURL: "http://example.com", RequestsPerSecond: 1},
			"local":  {Type: "ollama"},
		},
		Models: map[string]config.ModelConfig{
			"main":  {Provider: "aipipe", Model: "gpt-4o", Default: true, Expensive: true},
			"small": {Provider: "local", Model: "llama3"},
		},
	}

	reg, err := configbuilder.BuildRegistryFromConfig(cfg)
	require.NoError(t, err)

	p, _, err := reg.Resolve("main")
	require.NoError(t, err)
	require.Equal(t, "aipipe", p.Name())
	require.True(t, reg.IsExpensive("main"))
	require.Equal(t, []string{"main", "small"}, reg.Models())
}

func TestBuildRegistryRejectsUnknownType(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{"x": {Type: "carrier-pigeon"}},
	}
	_, err := configbuilder.BuildRegistryFromConfig(cfg)
	require.Error(t, err)
}
