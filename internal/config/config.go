package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Profiles  ProfilesConfig            `mapstructure:"profiles"`
	Agent     AgentConfig               `mapstructure:"agent"`
	Browser   BrowserConfig             `mapstructure:"browser"`
	Tools     ToolsConfig               `mapstructure:"tools"`
	Sandbox   SandboxConfig             `mapstructure:"sandbox"`
	Server    ServerConfig              `mapstructure:"server"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Telemetry TelemetryConfig           `mapstructure:"telemetry"`
}

// ProviderConfig represents an LLM endpoint such as OpenAI, an OpenAI-compatible gateway, or Ollama.
type ProviderConfig struct {
	Type              string        `mapstructure:"type"`     // openai, openrouter, aipipe, custom, ollama
	BaseURL           string        `mapstructure:"base_url"` // API base URL
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables client-side limiting
	Burst             int           `mapstructure:"burst"`
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
	Expensive   bool    `mapstructure:"expensive"`
}

// AgentConfig controls the solving loop and the chain supervisor.
type AgentConfig struct {
	MaxSteps         int           `mapstructure:"max_steps"`
	ChainTimeout     time.Duration `mapstructure:"chain_timeout"`
	RouterChars      int           `mapstructure:"router_chars"`
	HintChars        int           `mapstructure:"hint_chars"`
	PageChars        int           `mapstructure:"page_chars"`
	MaxContextTokens int           `mapstructure:"max_context_tokens"`
	TokenEncoding    string        `mapstructure:"token_encoding"`
	ModelErrorPause  time.Duration `mapstructure:"model_error_pause"`
	RetryPause       time.Duration `mapstructure:"retry_pause"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
}

// BrowserConfig configures the headless browser used for each chain.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	NoSandbox       bool          `mapstructure:"no_sandbox"`
	Stealth         bool          `mapstructure:"stealth"`
	Bin             string        `mapstructure:"bin"`
	UserAgent       string        `mapstructure:"user_agent"`
	ResultSelector  string        `mapstructure:"result_selector"`
	ViewportWidth   int           `mapstructure:"viewport_width"`
	ViewportHeight  int           `mapstructure:"viewport_height"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ActionTimeout   time.Duration `mapstructure:"action_timeout"`
}

// ToolsConfig configures the leaf tools exposed to the model.
type ToolsConfig struct {
	APITimeout      time.Duration `mapstructure:"api_timeout"`
	APIBodyChars    int           `mapstructure:"api_body_chars"`
	FileTimeout     time.Duration `mapstructure:"file_timeout"`
	PDFMaxPages     int           `mapstructure:"pdf_max_pages"`
	CSVMaxChars     int           `mapstructure:"csv_max_chars"`
	TextMaxChars    int           `mapstructure:"text_max_chars"`
	MaxDownloadSize int64         `mapstructure:"max_download_bytes"`
	SubmitTimeout   time.Duration `mapstructure:"submit_timeout"`
	MaxAnswerBytes  int           `mapstructure:"max_answer_bytes"`
	VisionMaxTokens int           `mapstructure:"vision_max_tokens"`
}

// SandboxConfig controls how model-authored code is executed.
type SandboxConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Interpreter    []string `mapstructure:"interpreter"`
	Wrapper        []string `mapstructure:"wrapper"` // optional prefix, e.g. prlimit or bwrap
	DeniedCommands []string `mapstructure:"denied_commands"`
	WorkingDir     string   `mapstructure:"working_dir"`
	PassEnv        []string `mapstructure:"pass_env"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	MaxOutputBytes int      `mapstructure:"max_output_bytes"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr                string `mapstructure:"addr"`
	Secret              string `mapstructure:"secret"`
	MetricsEnabled      bool   `mapstructure:"metrics_enabled"`
	H2C                 bool   `mapstructure:"h2c"`
	MaxConcurrentChains int64  `mapstructure:"max_concurrent_chains"`
	MaxBodyBytes        int64  `mapstructure:"max_body_bytes"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// A .env file in the working directory is loaded first when present. Environment
// variables override file values (prefix: QUIZAGENT_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUIZAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.secret", "QUIZAGENT_SERVER_SECRET", "SECRET_KEY")

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("profiles.fallback", "PRO")

	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.chain_timeout", 180*time.Second)
	v.SetDefault("agent.router_chars", 5000)
	v.SetDefault("agent.hint_chars", 2000)
	v.SetDefault("agent.page_chars", 20000)
	v.SetDefault("agent.max_context_tokens", 60000)
	v.SetDefault("agent.token_encoding", "cl100k_base")
	v.SetDefault("agent.model_error_pause", 2*time.Second)
	v.SetDefault("agent.retry_pause", 2*time.Second)
	v.SetDefault("agent.max_tokens", 2048)
	v.SetDefault("agent.temperature", 0.1)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.result_selector", "#result")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigate_timeout", 30*time.Second)
	v.SetDefault("browser.idle_timeout", 5*time.Second)
	v.SetDefault("browser.action_timeout", 5*time.Second)

	v.SetDefault("tools.api_timeout", 10*time.Second)
	v.SetDefault("tools.api_body_chars", 5000)
	v.SetDefault("tools.file_timeout", 15*time.Second)
	v.SetDefault("tools.pdf_max_pages", 10)
	v.SetDefault("tools.csv_max_chars", 100000)
	v.SetDefault("tools.text_max_chars", 10000)
	v.SetDefault("tools.max_download_bytes", 32<<20)
	v.SetDefault("tools.submit_timeout", 30*time.Second)
	v.SetDefault("tools.max_answer_bytes", 1<<20)
	v.SetDefault("tools.vision_max_tokens", 500)

	v.SetDefault("sandbox.enabled", true)
	v.SetDefault("sandbox.interpreter", []string{"python3", "-I", "-"})
	v.SetDefault("sandbox.wrapper", []string{})
	v.SetDefault("sandbox.denied_commands", []string{"sh", "bash", "sudo", "su"})
	v.SetDefault("sandbox.pass_env", []string{"PATH", "LANG"})
	v.SetDefault("sandbox.timeout_seconds", 30)
	v.SetDefault("sandbox.max_output_bytes", 64<<10)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.h2c", false)
	v.SetDefault("server.max_concurrent_chains", 4)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "quizagent")
	v.SetDefault("telemetry.otlp_endpoint", "http://127.0.0.1:4318")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		switch strings.ToLower(p.Type) {
		case "openai", "openrouter", "aipipe", "custom", "ollama":
		case "":
			return fmt.Errorf("provider %q must define type", name)
		default:
			return fmt.Errorf("provider %q has unknown type %q", name, p.Type)
		}
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("provider %q requests_per_second must be >= 0", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}
		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}
		if m.Default {
			defaultFound = true
		}
	}
	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if err := c.Profiles.validate(c.Models); err != nil {
		return err
	}

	if c.Agent.MaxSteps <= 0 {
		return errors.New("agent.max_steps must be > 0")
	}
	if c.Agent.ChainTimeout <= 0 {
		return errors.New("agent.chain_timeout must be > 0")
	}
	if c.Agent.RouterChars <= 0 || c.Agent.HintChars <= 0 || c.Agent.PageChars <= 0 {
		return errors.New("agent.router_chars, agent.hint_chars and agent.page_chars must be > 0")
	}
	if c.Agent.MaxContextTokens < 0 {
		return errors.New("agent.max_context_tokens must be >= 0")
	}

	if strings.TrimSpace(c.Browser.ResultSelector) == "" {
		return errors.New("browser.result_selector must be set")
	}
	if c.Browser.ActionTimeout <= 0 || c.Browser.IdleTimeout <= 0 || c.Browser.NavigateTimeout <= 0 {
		return errors.New("browser timeouts must be > 0")
	}

	if c.Tools.MaxAnswerBytes <= 0 {
		return errors.New("tools.max_answer_bytes must be > 0")
	}
	if c.Tools.PDFMaxPages <= 0 {
		return errors.New("tools.pdf_max_pages must be > 0")
	}

	if c.Sandbox.Enabled && len(c.Sandbox.Interpreter) == 0 {
		return errors.New("sandbox.interpreter must be set when sandbox is enabled")
	}
	if c.Sandbox.TimeoutSeconds <= 0 {
		return errors.New("sandbox.timeout_seconds must be > 0")
	}

	if c.Server.MaxConcurrentChains <= 0 {
		return errors.New("server.max_concurrent_chains must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console or json, got %q", c.Logging.Format)
	}

	return nil
}
