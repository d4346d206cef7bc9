// Package config loads lf.toml, the per-project settings for running lf programs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"lf/internal/executor"
	"lf/internal/lang"
	"lf/internal/security"
	"lf/internal/toolchain"
)

// FileName is the configuration file looked up next to sources.
const FileName = "lf.toml"

// Duration is a TOML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Config mirrors lf.toml.
type Config struct {
	Path       string                    `toml:"-"`
	Run        RunConfig                 `toml:"run"`
	Timeouts   TimeoutConfig             `toml:"timeouts"`
	Languages  map[string]LanguageConfig `toml:"languages"`
	Toolchains map[string]string         `toml:"toolchains"`
	Cache      CacheConfig               `toml:"cache"`
}

// RunConfig is the [run] table.
type RunConfig struct {
	Policy      string `toml:"policy"`
	Screen      *bool  `toml:"screen"`
	FailOnError bool   `toml:"fail_on_error"`
}

// TimeoutConfig is the [timeouts] table; it applies to every language.
type TimeoutConfig struct {
	Compile Duration `toml:"compile"`
	Run     Duration `toml:"run"`
}

// LanguageConfig is one [languages.<tag>] table.
type LanguageConfig struct {
	CompileTimeout Duration `toml:"compile_timeout"`
	RunTimeout     Duration `toml:"run_timeout"`
}

// CacheConfig is the [cache] table.
type CacheConfig struct {
	Disabled bool   `toml:"disabled"`
	Dir      string `toml:"dir"`
}

// Default is the configuration used when no lf.toml exists.
func Default() *Config {
	return &Config{}
}

// Find walks up from startDir to locate lf.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads explicit when set, otherwise the nearest lf.toml above
// startDir, otherwise Default.
func Discover(startDir, explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load parses and validates one file. Unknown keys are errors.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.validate(lang.Default()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate(reg *lang.Registry) error {
	if _, err := security.ParsePolicy(c.Run.Policy); err != nil {
		return fmt.Errorf("[run].policy: %w", err)
	}
	for _, tag := range sortedKeys(c.Languages) {
		if _, ok := reg.Lookup(tag); ok {
			continue
		}
		if near, ok := reg.Closest(tag); ok {
			return fmt.Errorf("[languages.%s]: unknown language (did you mean %q?)", tag, near)
		}
		return fmt.Errorf("[languages.%s]: unknown language", tag)
	}
	for name, path := range c.Toolchains {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("[toolchains].%s: empty path", name)
		}
	}
	return nil
}

// Policy is the configured security policy, advisory by default.
func (c *Config) Policy() security.Policy {
	p, _ := security.ParsePolicy(c.Run.Policy)
	return p
}

// PolicySet reports whether [run].policy was given.
func (c *Config) PolicySet() bool { return strings.TrimSpace(c.Run.Policy) != "" }

// Screen reports whether fragments are screened in advisory mode.
func (c *Config) Screen() bool {
	return c.Run.Screen == nil || *c.Run.Screen
}

// ExecutorTimeouts merges the defaults, [timeouts] and [languages.<tag>].
func (c *Config) ExecutorTimeouts() map[string]executor.Timeouts {
	out := executor.DefaultTimeouts()
	for tag, t := range out {
		if c.Timeouts.Compile.Duration > 0 && t.Compile > 0 {
			t.Compile = c.Timeouts.Compile.Duration
		}
		if c.Timeouts.Run.Duration > 0 {
			t.Run = c.Timeouts.Run.Duration
		}
		out[tag] = t
	}
	for tag, lc := range c.Languages {
		t := out[tag]
		if lc.CompileTimeout.Duration > 0 {
			t.Compile = lc.CompileTimeout.Duration
		}
		if lc.RunTimeout.Duration > 0 {
			t.Run = lc.RunTimeout.Duration
		}
		out[tag] = t
	}
	return out
}

// Locator builds a toolchain locator honoring [toolchains].
func (c *Config) Locator() *toolchain.Locator {
	return toolchain.NewLocator(c.Toolchains)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
