// Package config provides configuration types and loading for ferroclaw.
package config

// Config is the root configuration struct.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Trace     TraceConfig     `json:"trace"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Workspace string `json:"workspace" envconfig:"WORKSPACE"`
}

// ModelConfig groups LLM model and turn settings.
type ModelConfig struct {
	Name              string  `json:"name" envconfig:"MODEL"`
	MaxTokens         int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature       float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxToolIterations int     `json:"maxToolIterations" envconfig:"MAX_TOOL_ITERATIONS"`
}

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI ProviderConfig `json:"openai"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Discord  DiscordConfig  `json:"discord"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"ENABLED"`
	Token     string   `json:"token" envconfig:"TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// SlackConfig configures the Slack channel (socket mode).
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"ENABLED"`
	BotToken string `json:"botToken" envconfig:"BOT_TOKEN"`
	AppToken string `json:"appToken" envconfig:"APP_TOKEN"`
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Enabled   bool     `json:"enabled" envconfig:"ENABLED"`
	Token     string   `json:"token" envconfig:"TOKEN"`
	AllowFrom []string `json:"allowFrom"`
}

// HeartbeatConfig configures the periodic wake-up.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled" envconfig:"ENABLED"`
	IntervalMinutes int  `json:"intervalMinutes" envconfig:"INTERVAL_MINUTES"`
}

// TraceConfig configures the Kafka trace publisher.
type TraceConfig struct {
	Brokers []string `json:"brokers" envconfig:"BROKERS"`
	Topic   string   `json:"topic" envconfig:"TOPIC"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Workspace: "~/.ferroclaw/workspace",
		},
		Model: ModelConfig{
			Name:              "anthropic/claude-sonnet-4-5",
			MaxTokens:         8192,
			Temperature:       0.7,
			MaxToolIterations: 20,
		},
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIBase: "https://api.openai.com/v1",
			},
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalMinutes: 30,
		},
		Trace: TraceConfig{
			Topic: "ferroclaw.trace",
		},
	}
}
