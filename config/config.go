package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"stream-classifier/classifier"
)

// ModelRule maps model names matching Pattern (a glob, case-insensitive)
// to a classifier family
type ModelRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Family  string `yaml:"family" json:"family"`
}

// FamilyConfig tunes the classifier of one family. Unset fields keep the
// family defaults.
type FamilyConfig struct {
	ThinkingStart       []string `yaml:"thinkingStart" json:"thinking_start,omitempty"`
	ThinkingEnd         []string `yaml:"thinkingEnd" json:"thinking_end,omitempty"`
	InitialThinking     *bool    `yaml:"initialThinking" json:"initial_thinking,omitempty"`
	SwallowLeadingStart *bool    `yaml:"swallowLeadingStart" json:"swallow_leading_start,omitempty"`
}

// Config represents the classifier service configuration
type Config struct {
	Port          string                  `yaml:"port" json:"port"`
	LogDir        string                  `yaml:"logDir" json:"log_dir"`
	LogLevel      string                  `yaml:"logLevel" json:"log_level"`
	DefaultFamily string                  `yaml:"defaultFamily" json:"default_family"`
	LoopThreshold int                     `yaml:"loopThreshold" json:"loop_threshold"`
	Models        []ModelRule             `yaml:"models" json:"models"`
	Families      map[string]FamilyConfig `yaml:"families" json:"families"`
}

// GetDefaultConfig returns the built-in configuration
func GetDefaultConfig() *Config {
	return &Config{
		Port:          "3456",
		LogDir:        "logs",
		LogLevel:      "info",
		DefaultFamily: classifier.FamilyDefault,
		LoopThreshold: 3,
		Models: []ModelRule{
			{Pattern: "*gpt-oss*", Family: classifier.FamilyGPTOSS},
			{Pattern: "*qwen3*", Family: classifier.FamilyQwen3},
			{Pattern: "*deepseek-r1*", Family: classifier.FamilyDeepSeekR1},
			{Pattern: "*llama-3.2*", Family: classifier.FamilyPythonic},
			{Pattern: "*llama-4*", Family: classifier.FamilyPythonic},
		},
		Families: make(map[string]FamilyConfig),
	}
}

// LoadEnv loads KEY=VALUE pairs from the given .env files (default ".env")
// into the process environment. Missing files are not an error and
// variables already set are not overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		log.Printf("🔧 Loaded environment from %s", p)
	}
	return nil
}

// Load reads the YAML config at path on top of the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Printf("📝 %s not found, using default configuration", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			log.Printf("📝 Loaded %d model rules from %s", len(cfg.Models), path)
		}
	}

	cfg.applyEnv()
	if cfg.Families == nil {
		cfg.Families = make(map[string]FamilyConfig)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
		log.Printf("🔧 Configured PORT: %s", v)
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DEFAULT_FAMILY"); v != "" {
		c.DefaultFamily = v
		log.Printf("🔧 Configured DEFAULT_FAMILY: %s", v)
	}
	if v := os.Getenv("LOOP_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LoopThreshold = n
		} else {
			log.Printf("⚠️ Ignoring invalid LOOP_THRESHOLD %q", v)
		}
	}
}

// Validate rejects unknown families, malformed patterns and bad ports
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	if c.LoopThreshold < 0 {
		return fmt.Errorf("invalid loop threshold %d", c.LoopThreshold)
	}
	if !classifier.IsFamily(c.DefaultFamily) {
		return fmt.Errorf("unknown default family %q", c.DefaultFamily)
	}
	for i, rule := range c.Models {
		if !doublestar.ValidatePattern(strings.ToLower(rule.Pattern)) {
			return fmt.Errorf("model rule %d: malformed pattern %q", i, rule.Pattern)
		}
		if !classifier.IsFamily(rule.Family) {
			return fmt.Errorf("model rule %d: unknown family %q", i, rule.Family)
		}
	}
	for name := range c.Families {
		if !classifier.IsFamily(name) {
			return fmt.Errorf("families: unknown family %q", name)
		}
	}
	return nil
}

// FamilyForModel returns the family of the first rule whose pattern matches
// the model name, or DefaultFamily. Names with a vendor prefix such as
// "openai/gpt-oss-20b" are also matched by their last path segment.
func (c *Config) FamilyForModel(model string) string {
	name := strings.ToLower(model)
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	for _, rule := range c.Models {
		pattern := strings.ToLower(rule.Pattern)
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return rule.Family
		}
		if base != name {
			if ok, err := doublestar.Match(pattern, base); err == nil && ok {
				return rule.Family
			}
		}
	}
	if c.DefaultFamily == "" {
		return classifier.FamilyDefault
	}
	return c.DefaultFamily
}

// ClassifierOptions translates the configured overrides of family into
// classifier options
func (c *Config) ClassifierOptions(family string) []classifier.Option {
	fc, ok := c.Families[family]
	if !ok {
		return nil
	}
	var opts []classifier.Option
	if len(fc.ThinkingStart) > 0 || len(fc.ThinkingEnd) > 0 {
		opts = append(opts, classifier.WithThinkingTags(fc.ThinkingStart, fc.ThinkingEnd))
	}
	if fc.InitialThinking != nil {
		opts = append(opts, classifier.WithInitialThinking(*fc.InitialThinking))
	}
	if fc.SwallowLeadingStart != nil {
		opts = append(opts, classifier.WithSwallowLeadingStart(*fc.SwallowLeadingStart))
	}
	return opts
}
