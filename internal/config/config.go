package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/rapor/internal/engines"
	"github.com/jackzampolin/rapor/internal/scores"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Manager handles loading configuration.
type Manager struct {
	mu     sync.RWMutex
	v      *viper.Viper
	config *Config
}

// NewManager creates a new config manager and loads the config.
// Precedence: RAPOR_* environment, config file, defaults.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	for _, entry := range DefaultEntries() {
		cm.v.SetDefault(entry.Key, entry.Value)
	}

	// Environment variables with RAPOR_ prefix, e.g. RAPOR_OCR_PRIMARY
	cm.v.SetEnvPrefix("RAPOR")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.rapor")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the file the config was read from, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if _, err := scores.NewVocabulary(c.Vocabulary); err != nil {
		return fmt.Errorf("%w: vocabulary: %w", ErrInvalid, err)
	}
	if c.Render.DPI <= 0 {
		return fmt.Errorf("%w: render.dpi must be positive, got %d", ErrInvalid, c.Render.DPI)
	}
	if c.Preprocess.BlockSize < 3 || c.Preprocess.BlockSize%2 == 0 {
		return fmt.Errorf("%w: preprocess.block_size must be odd and at least 3, got %d", ErrInvalid, c.Preprocess.BlockSize)
	}
	if c.OCR.MinTextLength < 1 {
		return fmt.Errorf("%w: ocr.min_text_length must be at least 1, got %d", ErrInvalid, c.OCR.MinTextLength)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("%w: ocr.min_confidence must be within [0,1], got %v", ErrInvalid, c.OCR.MinConfidence)
	}
	if _, err := scores.ParseMergePolicy(c.Merge.Policy); err != nil {
		return fmt.Errorf("%w: merge.policy: %w", ErrInvalid, err)
	}
	if c.Batch.SettleMillis < 0 {
		return fmt.Errorf("%w: batch.settle_millis must not be negative", ErrInvalid)
	}

	primary, ok := c.GetEngine(c.OCR.Primary)
	if !ok || !primary.Enabled {
		return fmt.Errorf("%w: primary engine %q is not configured and enabled", ErrInvalid, c.OCR.Primary)
	}
	if c.OCR.Secondary != "" {
		if c.OCR.Secondary == c.OCR.Primary {
			return fmt.Errorf("%w: secondary engine must differ from the primary", ErrInvalid)
		}
		secondary, ok := c.GetEngine(c.OCR.Secondary)
		if !ok || !secondary.Enabled {
			return fmt.Errorf("%w: secondary engine %q is not configured and enabled", ErrInvalid, c.OCR.Secondary)
		}
	}
	return nil
}

// ScoreVocabulary returns the configured subjects as a Vocabulary.
func (c *Config) ScoreVocabulary() (scores.Vocabulary, error) {
	return scores.NewVocabulary(c.Vocabulary)
}

// MergePolicy returns the configured merge policy.
func (c *Config) MergePolicy() (scores.MergePolicy, error) {
	return scores.ParseMergePolicy(c.Merge.Policy)
}

// SettleDuration returns the watch quiet period.
func (c *Config) SettleDuration() time.Duration {
	return time.Duration(c.Batch.SettleMillis) * time.Millisecond
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToEngineRegistryConfig converts the config to a format suitable for engines.Registry.
// It resolves all ${ENV_VAR} references in API keys. Engines without their
// own languages get ocr.languages.
func (c *Config) ToEngineRegistryConfig() engines.RegistryConfig {
	cfg := engines.RegistryConfig{
		Engines: make(map[string]engines.EngineConfig),
	}

	for name, e := range c.Engines {
		langs := e.Languages
		if len(langs) == 0 {
			langs = c.OCR.Languages
		}
		cfg.Engines[name] = engines.EngineConfig{
			Type:                e.Type,
			URL:                 e.URL,
			Model:               e.Model,
			APIKey:              ResolveEnvVars(e.APIKey),
			Languages:           langs,
			Timeout:             time.Duration(e.TimeoutSeconds) * time.Second,
			RateLimit:           e.RateLimit,
			AngleClassification: e.AngleClassification,
			Variables:           e.Variables,
			Enabled:             e.Enabled,
		}
	}

	return cfg
}

// WriteDefault writes DefaultConfig to path as commented YAML.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Rapor configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export DEEPINFRA_API_KEY=xxx MISTRAL_API_KEY=xxx
# Any key can be overridden with RAPOR_<SECTION>_<KEY>, e.g. RAPOR_OCR_PRIMARY=tesseract

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
