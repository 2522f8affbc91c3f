package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "DATALAYER_"

// Loader layers configuration sources: YAML file, then environment, then
// overrides. Later layers win.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file. An empty path skips the file layer.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values keyed by dotted path ("storage.driver")
// applied after every other layer.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every layer and unmarshals into target. Fields no layer
// mentions keep their value, so target should hold the defaults.
func (l *Loader) Load(target any) error {
	layers := []struct {
		name string
		load func() error
	}{
		{"config file", func() error { return l.LoadFile(l.filePath) }},
		{"env", l.LoadEnv},
		{"overrides", func() error { return l.LoadMap(l.overrides) }},
	}
	for _, layer := range layers {
		if err := layer.load(); err != nil {
			return fmt.Errorf("load %s: %w", layer.name, err)
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadEnv merges the prefixed environment variables. A double underscore
// separates sections; a single one stays part of the key:
//
//	DATALAYER_STORAGE__QUEUE_SIZE=512 -> storage.queue_size
//	DATALAYER_PURGE__INTERVAL=1m      -> purge.interval
func (l *Loader) LoadEnv() error {
	prefix := l.envPrefix
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		return EnvKey(prefix, s)
	}), nil)
}

// EnvKey maps an environment variable name to a dotted config path.
func EnvKey(prefix, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(name, "__", ".")
}

// LoadMap merges values keyed by dotted path. A nil map is a no-op.
func (l *Loader) LoadMap(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return l.k.Load(mapProvider(values), nil)
}

// String returns the merged value at key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Int returns the merged value at key.
func (l *Loader) Int(key string) int {
	return l.k.Int(key)
}
