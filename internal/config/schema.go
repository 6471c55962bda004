package config

// Config holds promptpal configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LogLevel  string       `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	Optimizer OptimizerCfg `mapstructure:"optimizer" yaml:"optimizer"`
	Library   LibraryCfg   `mapstructure:"library" yaml:"library"`
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
	Share     ShareCfg     `mapstructure:"share" yaml:"share"`
}

// OptimizerCfg configures the remote optimizer.
type OptimizerCfg struct {
	Model          string  `mapstructure:"model" yaml:"model" validate:"required"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`       // 0 derives from prompt length
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`   // supports ${ENV_VAR} syntax
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
}

// LibraryCfg selects the prompt library profile.
type LibraryCfg struct {
	User string `mapstructure:"user" yaml:"user" validate:"required"`
}

// ServerCfg configures `promptpal serve`.
type ServerCfg struct {
	Host          string  `mapstructure:"host" yaml:"host" validate:"required"`
	Port          string  `mapstructure:"port" yaml:"port" validate:"required,numeric"`
	OptimizeRPS   float64 `mapstructure:"optimize_rps" yaml:"optimize_rps" validate:"gte=0"` // 0 disables throttling
	OptimizeBurst int     `mapstructure:"optimize_burst" yaml:"optimize_burst" validate:"gte=0"`
}

// ShareCfg configures share links.
type ShareCfg struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Optimizer: OptimizerCfg{
			Model:          "gpt-3.5-turbo",
			Temperature:    0.2,
			MaxTokens:      0,
			BaseURL:        "",
			TimeoutSeconds: 60,
		},
		Library: LibraryCfg{
			User: "local",
		},
		Server: ServerCfg{
			Host:          "127.0.0.1",
			Port:          "8080",
			OptimizeRPS:   1,
			OptimizeBurst: 3,
		},
		Share: ShareCfg{
			BaseURL: "http://127.0.0.1:8080",
		},
	}
}
