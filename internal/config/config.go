package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. PROMPTPAL_OPTIMIZER_MODEL.
const EnvPrefix = "PROMPTPAL"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	logger    *slog.Logger
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// When cfgFile is empty, config.yaml is searched for in searchPaths.
func NewManager(cfgFile string, searchPaths ...string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		logger:    slog.Default(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, searchPaths); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// SetLogger sets the logger used for reload errors.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		cm.logger = logger
	}
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string, searchPaths []string) error {
	v := cm.v
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("optimizer.model", d.Optimizer.Model)
	v.SetDefault("optimizer.temperature", d.Optimizer.Temperature)
	v.SetDefault("optimizer.max_tokens", d.Optimizer.MaxTokens)
	v.SetDefault("optimizer.base_url", d.Optimizer.BaseURL)
	v.SetDefault("optimizer.timeout_seconds", d.Optimizer.TimeoutSeconds)
	v.SetDefault("library.user", d.Library.User)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.optimize_rps", d.Server.OptimizeRPS)
	v.SetDefault("server.optimize_burst", d.Server.OptimizeBurst)
	v.SetDefault("share.base_url", d.Share.BaseURL)

	// Environment variables with PROMPTPAL_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		for _, p := range searchPaths {
			v.AddConfigPath(p)
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a validated Config.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the config file path, or "" when running on defaults.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Changes that fail to
// parse or validate are logged and the previous config is kept.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var validate = validator.New()

// Validate checks field constraints. ${ENV_VAR} references are resolved first.
func (c *Config) Validate() error {
	resolved := *c
	resolved.Optimizer.BaseURL = ResolveEnvVars(c.Optimizer.BaseURL)
	if err := validate.Struct(&resolved); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// OptimizerBaseURL returns the optimizer base URL with ${ENV_VAR} references resolved.
func (c *Config) OptimizerBaseURL() string {
	return ResolveEnvVars(c.Optimizer.BaseURL)
}

// ToOpenAIConfig converts the optimizer section for providers.NewOpenAIClient.
// The API key is left empty: it is read from the credential store per request.
func (c *Config) ToOpenAIConfig() providers.OpenAIConfig {
	return providers.OpenAIConfig{
		Model:   c.Optimizer.Model,
		Timeout: time.Duration(c.Optimizer.TimeoutSeconds) * time.Second,
		BaseURL: c.OptimizerBaseURL(),
	}
}

// ToClientConfig converts the optimizer section for optimizer.NewClient.
func (c *Config) ToClientConfig(logger *slog.Logger) optimizer.ClientConfig {
	temperature := c.Optimizer.Temperature
	return optimizer.ClientConfig{
		Model:       c.Optimizer.Model,
		Temperature: &temperature,
		MaxTokens:   c.Optimizer.MaxTokens,
		Logger:      logger,
	}
}

// NewOptimizerClient builds the remote optimizer client described by c.
func (c *Config) NewOptimizerClient(logger *slog.Logger) *optimizer.Client {
	return optimizer.NewClient(providers.NewOpenAIClient(c.ToOpenAIConfig()), c.ToClientConfig(logger))
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// LoadDotEnv loads KEY=value pairs from the given files (default ".env") into
// the environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# PromptPal configuration
# Environment variables override any key: PROMPTPAL_OPTIMIZER_MODEL, PROMPTPAL_SERVER_PORT, ...
# optimizer.base_url accepts ${ENV_VAR} syntax, e.g. "${OPENAI_BASE_URL}"
# The OpenAI API key is not stored here; set it with: promptpal key set

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
