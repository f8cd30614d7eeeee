// Package config loads the coordinator configuration from defaults, an
// optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/tracing"
)

// EnvPrefix prefixes every environment variable, e.g. MAS_SERVER_ADDR.
const EnvPrefix = "MAS"

// Supported LLM providers.
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var providers = []string{ProviderAzure, ProviderOpenAI, ProviderAnthropic}

// Config is the complete, immutable runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agents  AgentsConfig  `mapstructure:"agents"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	DeploymentName    string        `mapstructure:"deployment_name"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit         float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst         int           `mapstructure:"rate_burst"`
}

// LLMConfig configures the model serving the decision and synthesis calls.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"`
	Endpoint       string  `mapstructure:"endpoint"`
	APIVersion     string  `mapstructure:"api_version"`
	DeploymentName string  `mapstructure:"deployment_name"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int64   `mapstructure:"max_tokens"`
	// APIKey is used when a request carries no key of its own, e.g. from the CLI.
	APIKey string `mapstructure:"api_key"`
}

// AgentsConfig configures the agent gateways.
type AgentsConfig struct {
	GPA GPAConfig `mapstructure:"gpa"`
	UMS UMSConfig `mapstructure:"ums"`
}

// GPAConfig configures the general purpose agent deployment. It is served by
// the same endpoint as the coordinator model.
type GPAConfig struct {
	DeploymentName string `mapstructure:"deployment_name"`
	// Provider defaults to the coordinator model provider.
	Provider string `mapstructure:"provider"`
}

// UMSConfig configures the user management service agent.
type UMSConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	DeploymentName string        `mapstructure:"deployment_name"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// Load reads the configuration. An empty path searches ./configs and the
// working directory for config.yaml and tolerates its absence. optFns may
// adjust the viper instance before reading, e.g. to bind CLI flags.
func Load(path string, optFns ...func(v *viper.Viper)) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	for _, fn := range optFns {
		fn(v)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8055")
	v.SetDefault("server.deployment_name", "mas-coordinator")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("llm.provider", ProviderAzure)
	v.SetDefault("llm.endpoint", "http://localhost:8080")
	v.SetDefault("llm.api_version", "2025-01-01-preview")
	v.SetDefault("llm.deployment_name", "gpt-4o")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.api_key", "")

	v.SetDefault("agents.gpa.deployment_name", "general-purpose-agent")
	v.SetDefault("agents.gpa.provider", "")
	v.SetDefault("agents.ums.endpoint", "http://localhost:8042")
	v.SetDefault("agents.ums.deployment_name", "ums-agent")
	v.SetDefault("agents.ums.timeout", "2m")

	v.SetDefault("log.backend", "slog")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", true)
}

// bindLegacyEnv keeps the unprefixed variable names of earlier deployments
// working. Prefixed names take precedence.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"llm.endpoint":        "DIAL_ENDPOINT",
		"llm.deployment_name": "DEPLOYMENT_NAME",
		"agents.ums.endpoint": "UMS_AGENT_ENDPOINT",
		"log.level":           "LOG_LEVEL",
	}
	for key, env := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.DeploymentName == "" {
		return errors.New("server.deployment_name must be set")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative: %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("server.rate_burst must be positive: %d", c.Server.RateBurst)
	}

	if !slices.Contains(providers, c.LLM.Provider) {
		return fmt.Errorf("unknown llm.provider %q (want one of %s)", c.LLM.Provider, strings.Join(providers, ", "))
	}
	if c.LLM.Provider == ProviderAzure && c.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set for the azure provider")
	}
	if c.LLM.DeploymentName == "" {
		return errors.New("llm.deployment_name must be set")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive: %d", c.LLM.MaxTokens)
	}

	if p := c.Agents.GPA.Provider; p != "" && !slices.Contains(providers, p) {
		return fmt.Errorf("unknown agents.gpa.provider %q", p)
	}
	if c.Agents.GPA.DeploymentName == "" {
		return errors.New("agents.gpa.deployment_name must be set")
	}
	if c.Agents.UMS.Endpoint == "" {
		return errors.New("agents.ums.endpoint must be set")
	}
	if c.Agents.UMS.Timeout <= 0 {
		return fmt.Errorf("agents.ums.timeout must be positive: %s", c.Agents.UMS.Timeout)
	}

	if b := strings.ToLower(c.Log.Backend); b != "slog" && b != "zerolog" {
		return fmt.Errorf("unknown log.backend %q", c.Log.Backend)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint must be set when tracing is enabled")
	}
	return nil
}

// GPAProvider returns the provider serving the general purpose agent.
func (c *Config) GPAProvider() string {
	if c.Agents.GPA.Provider != "" {
		return c.Agents.GPA.Provider
	}
	return c.LLM.Provider
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Backend: c.Log.Backend,
		Level:   logging.ParseLevel(c.Log.Level),
		Format:  c.Log.Format,
		Output:  os.Stdout,
	}
}

// TracingProvider returns the tracing configuration.
func (c *Config) TracingProvider(version string) tracing.Config {
	return tracing.Config{
		Enabled:     c.Tracing.Enabled,
		Endpoint:    c.Tracing.Endpoint,
		Insecure:    c.Tracing.Insecure,
		ServiceName: c.Server.DeploymentName,
		Version:     version,
	}
}
