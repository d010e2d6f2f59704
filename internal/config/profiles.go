package config

import (
	"fmt"
	"strings"
)

// DefaultUserAgent is presented by the browser unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// ProfilesConfig binds each specialist profile and the helper roles to logical model ids.
// Empty entries resolve to the registry default model.
type ProfilesConfig struct {
	RouterModel string `mapstructure:"router_model"`
	SimpleModel string `mapstructure:"simple_model"`
	CodeModel   string `mapstructure:"code_model"`
	ProModel    string `mapstructure:"pro_model"`
	VisionModel string `mapstructure:"vision_model"`
	Fallback    string `mapstructure:"fallback"` // profile used when routing fails
}

func (p ProfilesConfig) validate(models map[string]ModelConfig) error {
	for role, modelID := range map[string]string{
		"router_model": p.RouterModel,
		"simple_model": p.SimpleModel,
		"code_model":   p.CodeModel,
		"pro_model":    p.ProModel,
		"vision_model": p.VisionModel,
	} {
		if strings.TrimSpace(modelID) == "" {
			continue
		}
		if _, ok := models[modelID]; !ok {
			return fmt.Errorf("profiles.%s references unknown model %q", role, modelID)
		}
	}
	switch strings.ToUpper(strings.TrimSpace(p.Fallback)) {
	case "", "SIMPLE", "CODE", "PRO":
	default:
		return fmt.Errorf("profiles.fallback must be one of SIMPLE, CODE, PRO, got %q", p.Fallback)
	}
	return nil
}
