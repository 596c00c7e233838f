package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent mdpilot configuration stored as
// config.toml in the .mdpilot/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int          `toml:"version"`
	API     APIConfig    `toml:"api"`
	Chat    ChatConfig   `toml:"chat"`
	Output  OutputConfig `toml:"output"`
	Server  ServerConfig `toml:"server"`
	Events  EventsConfig `toml:"events"`
}

// APIConfig holds the completion API settings.
type APIConfig struct {
	Key         string   `toml:"key,omitempty"`
	Endpoint    string   `toml:"endpoint,omitempty"`
	Model       string   `toml:"model,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`

	// Timeout bounds a whole request, as a Go duration ("2m"). Empty means
	// no timeout.
	Timeout string `toml:"timeout,omitempty"`
}

// ChatConfig holds conversation settings.
type ChatConfig struct {
	// Language selects the CLI's own messages: "pl" or "en". Answers follow
	// the language of the instruction.
	Language       string `toml:"language,omitempty"`
	IncludeHistory bool   `toml:"include_history,omitempty"`

	// Cooldown separates queued API calls, as a Go duration ("20s").
	Cooldown string `toml:"cooldown,omitempty"`
}

// OutputConfig holds settings for answers and extracted documents.
type OutputConfig struct {
	Folder   string `toml:"folder,omitempty"`
	AutoSave bool   `toml:"auto_save,omitempty"`
	Render   bool   `toml:"render,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds completion event publishing settings. Publishing is off
// while Brokers is empty.
type EventsConfig struct {
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// TimeoutDuration parses Timeout. Empty yields zero.
func (a APIConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration("api.timeout", a.Timeout)
}

// CooldownDuration parses Cooldown. Empty yields zero.
func (c ChatConfig) CooldownDuration() (time.Duration, error) {
	return parseDuration("chat.cooldown", c.Cooldown)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked when listed.
	secret bool
}

func setBool(key string, target *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*target = b
		return nil
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.key": {
		get:    func(c *Config) string { return c.API.Key },
		set:    func(c *Config, v string) error { c.API.Key = strings.TrimSpace(v); return nil },
		secret: true,
	},
	"api.endpoint": {
		get: func(c *Config) string { return c.API.Endpoint },
		set: func(c *Config, v string) error { c.API.Endpoint = v; return nil },
	},
	"api.model": {
		get: func(c *Config) string { return c.API.Model },
		set: func(c *Config, v string) error { c.API.Model = v; return nil },
	},
	"api.temperature": {
		get: func(c *Config) string {
			if c.API.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*c.API.Temperature, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for api.temperature: %w", err)
			}
			if f < 0 || f > 2 {
				return fmt.Errorf("invalid value for api.temperature: %g is outside [0, 2]", f)
			}
			c.API.Temperature = &f
			return nil
		},
	},
	"api.timeout": {
		get: func(c *Config) string { return c.API.Timeout },
		set: func(c *Config, v string) error {
			if _, err := parseDuration("api.timeout", v); err != nil {
				return err
			}
			c.API.Timeout = v
			return nil
		},
	},
	"chat.language": {
		get: func(c *Config) string { return c.Chat.Language },
		set: func(c *Config, v string) error {
			lang := strings.ToLower(v)
			if !IsValidLanguage(lang) {
				return fmt.Errorf("invalid value for chat.language: %q (available: %s)", v, strings.Join(ValidLanguages(), ", "))
			}
			c.Chat.Language = lang
			return nil
		},
	},
	"chat.include_history": {
		get: func(c *Config) string { return strconv.FormatBool(c.Chat.IncludeHistory) },
		set: func(c *Config, v string) error { return setBool("chat.include_history", &c.Chat.IncludeHistory)(v) },
	},
	"chat.cooldown": {
		get: func(c *Config) string { return c.Chat.Cooldown },
		set: func(c *Config, v string) error {
			if _, err := parseDuration("chat.cooldown", v); err != nil {
				return err
			}
			c.Chat.Cooldown = v
			return nil
		},
	},
	"output.folder": {
		get: func(c *Config) string { return c.Output.Folder },
		set: func(c *Config, v string) error { c.Output.Folder = v; return nil },
	},
	"output.auto_save": {
		get: func(c *Config) string { return strconv.FormatBool(c.Output.AutoSave) },
		set: func(c *Config, v string) error { return setBool("output.auto_save", &c.Output.AutoSave)(v) },
	},
	"output.render": {
		get: func(c *Config) string { return strconv.FormatBool(c.Output.Render) },
		set: func(c *Config, v string) error { return setBool("output.render", &c.Output.Render)(v) },
	},
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error { c.Events.Brokers = SplitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

// SplitList splits a comma-separated value, dropping empty entries.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
