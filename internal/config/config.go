// Package config loads the server configuration from defaults, an optional
// YAML file, KANA_-prefixed environment variables, and command-line flags, in
// that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "KANA_"

// Config is the full server configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string `koanf:"addr" validate:"required"`
	// DataDir holds the per-user scheduling databases.
	DataDir string `koanf:"data-dir" validate:"required"`
	// ReposDir holds local checkouts of git question sources.
	ReposDir string `koanf:"repos-dir" validate:"required"`
	// Sources are question sources: local directories or git URLs.
	Sources []string `koanf:"sources"`
	// CooldownMinutes is the window after a review or bury during which a
	// card is excluded from random fallback selection.
	CooldownMinutes int `koanf:"cooldown-minutes" validate:"gte=1"`
	// BuryMinutes is how far a skipped question is deferred.
	BuryMinutes int `koanf:"bury-minutes" validate:"gte=1"`
	// AllowOrigins lists origins allowed by CORS. Empty allows all, which
	// suits a backend that carries no credentials.
	AllowOrigins []string `koanf:"allow-origins"`
}

// Flags returns the flag set the configuration can be loaded from, with
// defaults applied.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ExitOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("addr", ":8080", "HTTP listen address")
	f.String("data-dir", "data", "Directory for per-user scheduling databases")
	f.String("repos-dir", "repos", "Directory for git question source checkouts")
	f.StringSlice("sources", []string{"questions"}, "Question sources (local dirs or git URLs)")
	f.Int("cooldown-minutes", 15, "Cooldown window for recently touched cards")
	f.Int("bury-minutes", 15, "How many minutes a skipped question is deferred")
	f.StringSlice("allow-origins", nil, "CORS allowed origins (empty allows all)")
	f.String("optimize", "", "Optimize scheduler parameters for the given user and exit")
	return f
}

// Load assembles the configuration from the parsed flag set, the config file
// it names (if any), and the environment.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envTransform,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envTransform maps KANA_DATA_DIR to data-dir and splits list-valued
// variables on commas.
func envTransform(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", "-")
	switch key {
	case "sources", "allow-origins":
		return key, strings.Split(value, ",")
	}
	return key, value
}
