// Package conf discovers per-project configuration: a .cobuf YAML
// file found by walking up from the document being edited.
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked for in each
// directory from the document upwards.
const FileName = ".cobuf"

const (
	DefaultDelayFromIdle  = 50 * time.Millisecond
	DefaultDelayFromStart = 500 * time.Millisecond
)

// Duration decodes either a Go duration string ("50ms") or an integer
// nanosecond count.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Collaborator carries per-collaborator overrides, keyed by
// collaborator name in the config file.
type Collaborator struct {
	PushDelayFromIdle  Duration `yaml:"push_delay_from_idle"`
	PushDelayFromStart Duration `yaml:"push_delay_from_start"`
}

// Config is the project configuration.
type Config struct {
	// Remote is the websocket URL of a serving co-editor to dial.
	Remote string `yaml:"remote"`

	// Collaborators overrides debounce delays per collaborator name.
	Collaborators map[string]Collaborator `yaml:"collaborators"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{}
}

// Load reads and parses one config file.
func Load(path string) (Config, error) {
	out := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return out, nil
}

// Discover walks up from the given document path looking for FileName.
// It returns the parsed config and the path it was found at; a missing
// file is not an error and yields the default config with an empty
// path.
func Discover(from string) (Config, string, error) {
	abs, err := filepath.Abs(from)
	if err != nil {
		return Default(), "", err
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := Load(candidate)
			return cfg, candidate, err
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Default(), "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), "", nil
		}
		dir = parent
	}
}

// Delays resolves the debounce delays for a named collaborator,
// falling back to the package defaults.
func (c Config) Delays(name string) (idle, start time.Duration) {
	idle, start = DefaultDelayFromIdle, DefaultDelayFromStart
	o, ok := c.Collaborators[name]
	if !ok {
		return idle, start
	}
	if o.PushDelayFromIdle != 0 {
		idle = time.Duration(o.PushDelayFromIdle)
	}
	if o.PushDelayFromStart != 0 {
		start = time.Duration(o.PushDelayFromStart)
	}
	return idle, start
}
