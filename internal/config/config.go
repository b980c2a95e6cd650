// Package config provides the configuration structure for the tts-publisher.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// ServerConfig holds the configuration for the inbound HTTP server.
type ServerConfig struct {
	Port int `toml:"port"`
}

// TranslatorConfig holds the configuration for the translation collaborator.
type TranslatorConfig struct {
	URL            string `toml:"url"`
	TargetLanguage string `toml:"target_language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// SynthesizerConfig holds the configuration for the speech-synthesis collaborator.
type SynthesizerConfig struct {
	URL            string  `toml:"url"`
	DefaultVoice   string  `toml:"default_voice"`
	Speed          float64 `toml:"speed"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// PlatformConfig holds the configuration for the remote asset platform.
type PlatformConfig struct {
	UsersURL             string `toml:"users_url"`
	AssetsURL            string `toml:"assets_url"`
	DevelopURL           string `toml:"develop_url"`
	CookieFile           string `toml:"cookie_file"`
	UniverseID           int64  `toml:"universe_id"`
	GrantAssetPermission bool   `toml:"grant_asset_permissions"`
	BypassModerationWait bool   `toml:"bypass_moderation_wait"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// ArchiveConfig holds the configuration for the NATS audio archive.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Bucket  string `toml:"bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Translator  TranslatorConfig  `toml:"translator"`
	Synthesizer SynthesizerConfig `toml:"synthesizer"`
	Platform    PlatformConfig    `toml:"platform"`
	Archive     ArchiveConfig     `toml:"archive"`
	Paths       PathsConfig       `toml:"paths"`
}

// Load loads the configuration for the tts-publisher.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
