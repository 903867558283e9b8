// Package config loads client and server settings.
//
// Sources, later overriding earlier: built-in defaults, a YAML file,
// GRIDREALM_* environment variables, then explicit overrides (CLI flags).
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix. A double underscore
// separates nesting levels: GRIDREALM_LOG__LEVEL sets log.level.
const DefaultEnvPrefix = "GRIDREALM_"

type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

type Option func(*Loader)

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

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

// Load layers defaults, the config file, the environment and overrides, then
// unmarshals into target. Keys in defaults and overrides may be dotted.
func (l *Loader) Load(target any, defaults, overrides map[string]any) error {
	if err := l.LoadMap(defaults); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if err := l.LoadMap(overrides); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) LoadFile(path string) error {
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv maps GRIDREALM_REFRESH_INTERVAL to refresh_interval and
// GRIDREALM_LOG__FILE to log.file.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *Loader) LoadMap(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return l.k.Load(mapProvider(maps.Unflatten(data, ".")), nil)
}

func (l *Loader) GetString(key string) string { return l.k.String(key) }
