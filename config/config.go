// Package config holds the settings of a generation run.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file configuration.
const (
	EnvLevels     = "ASMGEN_LEVELS"
	EnvDeviceConf = "ASMGEN_DEVICE_CONF"
	EnvCacheTypes = "ASMGEN_CACHE_TYPES"
	EnvOutputDir  = "ASMGEN_OUTPUT_DIR"
	EnvMachine    = "ASMGEN_MACHINE"
	EnvRecord     = "ASMGEN_RECORD"
)

// Config describes what to generate and where.
type Config struct {
	// Levels are the cache levels to generate, processed in order.
	Levels []string `yaml:"levels"`

	// DeviceConf is the header with <LEVEL>_SETS and
	// <LEVEL>_ASSOCIATIVITY.
	DeviceConf string `yaml:"device_conf"`

	// CacheTypes is the header with CL_NEXT_OFFSET and CL_PREV_OFFSET.
	CacheTypes string `yaml:"cache_types"`

	OutputDir string   `yaml:"output_dir"`
	Extension string   `yaml:"extension"`
	Tool      string   `yaml:"tool"`
	Machine   string   `yaml:"machine"`
	Includes  []string `yaml:"includes"`

	// Record is the path prefix of the SQLite generation ledger. Empty
	// disables recording.
	Record string `yaml:"record"`
}

// Default returns the configuration of the attack library's source tree.
func Default() *Config {
	return &Config{
		Levels:     []string{"L1", "L2"},
		DeviceConf: "device_conf.h",
		CacheTypes: "cache_types.h",
		OutputDir:  ".",
		Extension:  "h",
		Tool:       "asmgen",
		Machine:    "x86_64",
		Includes:   []string{"asm.h", "cache.h", "device_conf.h"},
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}

// LoadEnvFiles loads the dotenv files that exist. Variables already set in
// the process environment are kept.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides fields from the environment as seen through lookup.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLevels); ok {
		cfg.Levels = SplitLevels(v)
	}
	if v, ok := lookup(EnvDeviceConf); ok {
		cfg.DeviceConf = v
	}
	if v, ok := lookup(EnvCacheTypes); ok {
		cfg.CacheTypes = v
	}
	if v, ok := lookup(EnvOutputDir); ok {
		cfg.OutputDir = v
	}
	if v, ok := lookup(EnvMachine); ok {
		cfg.Machine = v
	}
	if v, ok := lookup(EnvRecord); ok {
		cfg.Record = v
	}

	cfg.AdjustConfig()
}

// SplitLevels parses a comma or space separated level list.
func SplitLevels(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// AdjustConfig normalizes level names and fills empty fields with defaults.
func (cfg *Config) AdjustConfig() {
	def := Default()

	levels := make([]string, 0, len(cfg.Levels))
	for _, l := range cfg.Levels {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			levels = append(levels, l)
		}
	}
	cfg.Levels = levels

	if cfg.Extension == "" {
		cfg.Extension = def.Extension
	}
	if cfg.Tool == "" {
		cfg.Tool = def.Tool
	}
	if cfg.Machine == "" {
		cfg.Machine = def.Machine
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if len(cfg.Includes) == 0 {
		cfg.Includes = def.Includes
	}
}

// Validate checks that the configuration names something to generate.
func (cfg *Config) Validate() error {
	if len(cfg.Levels) == 0 {
		return errors.New("no cache levels configured")
	}

	seen := make(map[string]bool)
	for _, l := range cfg.Levels {
		if seen[l] {
			return fmt.Errorf("cache level %s listed twice", l)
		}
		seen[l] = true
	}

	if cfg.DeviceConf == "" {
		return errors.New("no device configuration file configured")
	}

	if cfg.CacheTypes == "" {
		return errors.New("no cache types file configured")
	}

	return nil
}
