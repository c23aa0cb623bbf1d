package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SESSPOOL_"

// LevelSeparator separates nesting levels in environment variable names.
// A single underscore stays part of the key name.
const LevelSeparator = "__"

// Loader layers a config file and environment variables over the values
// already present in the target struct.
type Loader struct {
	k           *koanf.Koanf
	envPrefix   string
	minEnvDepth int
	filePath    string
	optional    bool
	overrides   []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithMinEnvDepth ignores environment variables naming fewer than depth
// key levels. The server sets 2 so that SESSPOOL_SERVER and friends,
// which belong to the CLI, never clobber a config section.
func WithMinEnvDepth(depth int) Option {
	return func(l *Loader) { l.minEnvDepth = depth }
}

// WithConfigFile sets the configuration file path. Load fails if the
// file does not exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.optional = false
	}
}

// WithOptionalConfigFile sets a configuration file that is skipped when
// absent.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.optional = true
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file and environment and unmarshals into target. Later
// sources override earlier ones:
//  1. Values already present in target
//  2. Configuration file (YAML or JSON)
//  3. Environment variables
//
// Durations accept Go syntax ("90s", "10m").
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.loadFile(); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.loadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// Overrides returns the keys set from the environment, sorted.
func (l *Loader) Overrides() []string {
	out := append([]string(nil), l.overrides...)
	sort.Strings(out)
	return out
}

func (l *Loader) loadFile() error {
	if l.optional {
		if _, err := os.Stat(l.filePath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	// JSON documents are valid YAML and load the same way.
	if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", l.filePath, err)
	}
	return nil
}

// loadEnv maps PREFIX_A__B_C to the key a.b_c.
func (l *Loader) loadEnv() error {
	transform := func(name string) string {
		key := strings.ToLower(strings.TrimPrefix(name, l.envPrefix))
		if key == "" || strings.Count(key, LevelSeparator)+1 < l.minEnvDepth {
			return ""
		}
		key = strings.ReplaceAll(key, LevelSeparator, ".")
		l.overrides = append(l.overrides, key)
		return key
	}
	return l.k.Load(env.Provider(l.envPrefix, ".", transform), nil)
}
