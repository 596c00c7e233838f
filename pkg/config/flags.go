package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on "mdpilot chat", "mdpilot ask" and "mdpilot serve").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag, AddFloatFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagModel       = "model"
	FlagEndpoint    = "endpoint"
	FlagTemperature = "temperature"
	FlagTimeout     = "timeout"
	FlagLanguage    = "language"
	FlagHistory     = "history"
	FlagCooldown    = "cooldown"
	FlagOutput      = "output"
	FlagAutoSave    = "auto-save"
	FlagRender      = "render"
	FlagListen      = "listen"
	FlagBrokers     = "brokers"
	FlagTopic       = "topic"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "api.model",
		Description: "Model to use (sonar, sonar-pro, sonar-reasoning, ...)",
	},
	FlagEndpoint: {
		Name:        "endpoint",
		ViperKey:    "api.endpoint",
		Description: "Chat completions URL",
	},
	FlagTemperature: {
		Name:        "temperature",
		Shorthand:   "t",
		ViperKey:    "api.temperature",
		Description: "Sampling temperature",
	},
	FlagTimeout: {
		Name:        "timeout",
		ViperKey:    "api.timeout",
		Description: "Timeout for a whole request, e.g. 2m (empty for none)",
	},
	FlagLanguage: {
		Name:        "language",
		ViperKey:    "chat.language",
		Description: "Language of mdpilot's own messages (pl, en)",
	},
	FlagHistory: {
		Name:        "history",
		ViperKey:    "chat.include_history",
		Description: "Send earlier questions and answers as context",
	},
	FlagCooldown: {
		Name:        "cooldown",
		ViperKey:    "chat.cooldown",
		Description: "Pause between queued API calls, e.g. 20s",
	},
	FlagOutput: {
		Name:        "output",
		Shorthand:   "o",
		ViperKey:    "output.folder",
		Description: "Folder for documents extracted from answers",
	},
	FlagAutoSave: {
		Name:        "auto-save",
		ViperKey:    "output.auto_save",
		Description: "Save delimited documents from every answer",
	},
	FlagRender: {
		Name:        "render",
		ViperKey:    "output.render",
		Description: "Render finished answers as styled Markdown",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the HTTP server to listen on",
	},
	FlagBrokers: {
		Name:        "brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka brokers for completion events",
	},
	FlagTopic: {
		Name:        "topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for completion events",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultsViper().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultsViper().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultsViper().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
// Only flags the user actually set override lower layers.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultsViper returns a viper instance holding only NewDefaultConfig values.
func defaultsViper() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
