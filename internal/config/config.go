package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Session SessionConfig `mapstructure:"session"`
	Archive ArchiveConfig `mapstructure:"archive"`

	// CasesFile overrides the embedded case catalog when set.
	CasesFile string `mapstructure:"cases_file"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	ChatModel       string `mapstructure:"chat_model"`
	TranscribeModel string `mapstructure:"transcribe_model"`
	SpeechModel     string `mapstructure:"speech_model"`
	Voice           string `mapstructure:"voice"`
}

type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TurnTimeout   time.Duration `mapstructure:"turn_timeout"`
}

type ArchiveConfig struct {
	// DatabaseURL enables the Postgres turn archive when non-empty.
	DatabaseURL   string `mapstructure:"database_url"`
	NotifyChannel string `mapstructure:"notify_channel"`
}

// Load reads config.yaml (working directory or /etc/triage-sim, optional)
// and TRIAGE_* environment overrides into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/triage-sim")

	// Every key needs a default (empty counts) so AutomaticEnv can see it.
	v.SetDefault("server.port", "8080")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.chat_model", "")
	v.SetDefault("openai.transcribe_model", "")
	v.SetDefault("openai.speech_model", "")
	v.SetDefault("openai.voice", "")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.turn_timeout", "60s")
	v.SetDefault("archive.database_url", "")
	v.SetDefault("archive.notify_channel", "triage_turns")
	v.SetDefault("cases_file", "")

	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The API key usually arrives via the conventional variable name.
	v.BindEnv("openai.api_key", "OPENAI_API_KEY", "TRIAGE_OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
