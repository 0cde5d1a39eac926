package pagewatch

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cashpeek/cashpeek/pdp"
)

// Config holds all cashpeek runtime configuration.
type Config struct {
	PartnerDomain string        `yaml:"partner_domain"`
	DBPath        string        `yaml:"db_path"`
	Threshold     int           `yaml:"threshold"`
	Timing        TimingConfig  `yaml:"timing"`
	Catalog       CatalogConfig `yaml:"catalog"`
	Track         TrackConfig   `yaml:"track"`
}

// TimingConfig controls the coordinator's reaction delays.
type TimingConfig struct {
	// Debounce collapses mutation bursts into one detection run.
	Debounce time.Duration `yaml:"debounce"`
	// RetryDelay is the single deferred re-detection after a
	// non-qualifying first pass, for content that loads late.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// PollInterval is the URL change poll for SPA navigation.
	PollInterval time.Duration `yaml:"poll_interval"`
	// SettleDelay lets the new view render after a navigation before
	// the fresh detection runs.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// CatalogConfig selects the brand catalog source. URL wins over Path.
type CatalogConfig struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// TrackConfig controls analytics delivery.
type TrackConfig struct {
	Stdout  bool   `yaml:"stdout"`
	Webhook string `yaml:"webhook"`
}

func (c *Config) defaults() {
	if c.PartnerDomain == "" {
		c.PartnerDomain = "cashpeek.example"
	}
	if c.DBPath == "" {
		c.DBPath = "cashpeek.db"
	}
	if c.Threshold <= 0 {
		c.Threshold = pdp.DefaultThreshold
	}
	if c.Timing.Debounce <= 0 {
		c.Timing.Debounce = 500 * time.Millisecond
	}
	if c.Timing.RetryDelay <= 0 {
		c.Timing.RetryDelay = 3 * time.Second
	}
	if c.Timing.PollInterval <= 0 {
		c.Timing.PollInterval = 1 * time.Second
	}
	if c.Timing.SettleDelay <= 0 {
		c.Timing.SettleDelay = 500 * time.Millisecond
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
