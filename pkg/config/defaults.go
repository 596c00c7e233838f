package config

import "slices"

const (
	defaultEndpoint    = "https://api.perplexity.ai/chat/completions"
	defaultModel       = "sonar"
	defaultTemperature = 0.7

	defaultLanguage = "pl"
	defaultCooldown = "20s"

	defaultOutputFolder = "output"

	defaultServerListen = ":8787"

	defaultEventsTopic = "mdpilot.completions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	temperature := defaultTemperature

	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Endpoint:    defaultEndpoint,
			Model:       defaultModel,
			Temperature: &temperature,
		},
		Chat: ChatConfig{
			Language: defaultLanguage,
			Cooldown: defaultCooldown,
		},
		Output: OutputConfig{
			Folder: defaultOutputFolder,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}

// ValidLanguages returns the supported CLI languages.
func ValidLanguages() []string {
	return []string{"pl", "en"}
}

// IsValidLanguage reports whether lang is supported.
func IsValidLanguage(lang string) bool {
	return slices.Contains(ValidLanguages(), lang)
}
