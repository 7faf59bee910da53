package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/dataprep/internal/engine"
)

// DefaultConfigFile is read from the working directory when --config is not
// given.
const DefaultConfigFile = "dataprep.yaml"

const envPrefix = "DATAPREP_"

// Config holds CLI settings.
type Config struct {
	Delimiter       string   `koanf:"delimiter"`
	HighCardinality float64  `koanf:"high_cardinality"`
	MissingTokens   []string `koanf:"missing_tokens"`
	Theme           string   `koanf:"theme"`
	LogLevel        string   `koanf:"log_level"`
	LogFormat       string   `koanf:"log_format"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"delimiter":        ",",
		"high_cardinality": engine.DefaultHighCardinalityThreshold,
		"theme":            engine.DefaultTheme,
		"log_level":        "warn",
		"log_format":       "text",
	}
}

// LoadConfig layers defaults, the YAML config file, DATAPREP_* environment
// variables and explicitly set flags, in increasing precedence.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// DATAPREP_HIGH_CARDINALITY -> high_cardinality
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if _, err := parseDelimiter(c.Delimiter); err != nil {
		errs = append(errs, err.Error())
	}
	if c.HighCardinality <= 0 || c.HighCardinality > 1 {
		errs = append(errs, "high_cardinality must be in (0, 1]")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// parseDelimiter accepts a single character, `\t` or "tab".
func parseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("delimiter %q is not allowed", s)
	}
	return r, nil
}

// LoadOptions converts the settings into engine load options.
func (c *Config) LoadOptions() []engine.LoadOption {
	delim, _ := parseDelimiter(c.Delimiter)
	tokens := append(append([]string{}, engine.DefaultMissingTokens...), c.MissingTokens...)
	return []engine.LoadOption{
		engine.WithDelimiter(delim),
		engine.WithMissingTokens(tokens),
	}
}

// ClassifyOptions returns the classifier settings.
func (c *Config) ClassifyOptions() engine.ClassifyOptions {
	return engine.ClassifyOptions{HighCardinalityThreshold: c.HighCardinality}
}
