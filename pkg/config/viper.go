package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/mdpilot/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "MDPILOT"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MDPILOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MDPILOT_API_KEY, MDPILOT_API_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MDPILOT_API_KEY, MDPILOT_CHAT_COOLDOWN, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.key", d.API.Key)
	v.SetDefault("api.endpoint", d.API.Endpoint)
	v.SetDefault("api.model", d.API.Model)
	v.SetDefault("api.temperature", *d.API.Temperature)
	v.SetDefault("api.timeout", d.API.Timeout)

	// Chat
	v.SetDefault("chat.language", d.Chat.Language)
	v.SetDefault("chat.include_history", d.Chat.IncludeHistory)
	v.SetDefault("chat.cooldown", d.Chat.Cooldown)

	// Output
	v.SetDefault("output.folder", d.Output.Folder)
	v.SetDefault("output.auto_save", d.Output.AutoSave)
	v.SetDefault("output.render", d.Output.Render)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)

	// Events
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper resolves the effective Config from v, so flags and environment
// overrides apply.
func FromViper(v *viper.Viper) (*Config, error) {
	temperature := v.GetFloat64("api.temperature")

	cfg := &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			Key:         strings.TrimSpace(v.GetString("api.key")),
			Endpoint:    v.GetString("api.endpoint"),
			Model:       v.GetString("api.model"),
			Temperature: &temperature,
			Timeout:     v.GetString("api.timeout"),
		},
		Chat: ChatConfig{
			Language:       strings.ToLower(v.GetString("chat.language")),
			IncludeHistory: v.GetBool("chat.include_history"),
			Cooldown:       v.GetString("chat.cooldown"),
		},
		Output: OutputConfig{
			Folder:   v.GetString("output.folder"),
			AutoSave: v.GetBool("output.auto_save"),
			Render:   v.GetBool("output.render"),
		},
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Events: EventsConfig{
			Brokers: brokers(v),
			Topic:   v.GetString("events.topic"),
		},
	}

	if _, err := cfg.API.TimeoutDuration(); err != nil {
		return nil, err
	}
	if _, err := cfg.Chat.CooldownDuration(); err != nil {
		return nil, err
	}
	if !IsValidLanguage(cfg.Chat.Language) {
		return nil, fmt.Errorf("invalid value for chat.language: %q", cfg.Chat.Language)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// brokers reads events.brokers from either a TOML array or a comma-separated
// string (the form environment variables take).
func brokers(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("events.brokers") {
		out = append(out, SplitList(b)...)
	}
	return out
}
