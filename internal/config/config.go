package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. GRIDFLEX_WORKBOOK_PATH
const EnvPrefix = "GRIDFLEX"

// Defaults used when a setting is absent
const (
	DefaultWorkbook    = "base_de_dados_filtrada_v3.xlsx"
	DefaultSheet       = "base_de_dados"
	DefaultK           = 2
	DefaultDBPath      = "data.db"
	DefaultAddr        = ":8080"
	DefaultTopicPrefix = "gridflex"
	DefaultClientID    = "gridflex"
)

// Config holds the application configuration
type Config struct {
	Workbook      WorkbookConfig `yaml:"workbook" envconfig:"workbook"`
	Analysis      AnalysisConfig `yaml:"analysis,omitempty" envconfig:"analysis"`
	Cache         CacheConfig    `yaml:"cache,omitempty" envconfig:"cache"`
	Database      DatabaseConfig `yaml:"database,omitempty" envconfig:"database"`
	MQTT          MQTTConfig     `yaml:"mqtt,omitempty" envconfig:"mqtt"`
	HomeAssistant HAConfig       `yaml:"home_assistant,omitempty" envconfig:"home_assistant"`
	Server        ServerConfig   `yaml:"server,omitempty" envconfig:"server"`
	Chrome        ChromeConfig   `yaml:"chrome,omitempty" envconfig:"chrome"`
}

// WorkbookConfig locates the consumption spreadsheet
type WorkbookConfig struct {
	Path  string `yaml:"path" envconfig:"path"`
	Sheet string `yaml:"sheet" envconfig:"sheet"`
}

// AnalysisConfig holds band computation defaults
type AnalysisConfig struct {
	DefaultK int `yaml:"default_k,omitempty" envconfig:"default_k"` // 1..5, fallback 2
}

// CacheConfig holds the table cache invalidation policy
type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl,omitempty" envconfig:"ttl"` // 0 keeps tables until refreshed
	WatchModTime bool          `yaml:"watch_mod_time,omitempty" envconfig:"watch_mod_time"`
}

// DatabaseConfig locates the analysis history
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty" envconfig:"path"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"enabled"`
	Broker      string `yaml:"broker" envconfig:"broker"` // host:port
	Username    string `yaml:"username,omitempty" envconfig:"username"`
	Password    string `yaml:"password,omitempty" envconfig:"password"`
	TopicPrefix string `yaml:"topic_prefix,omitempty" envconfig:"topic_prefix"`
	ClientID    string `yaml:"client_id,omitempty" envconfig:"client_id"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"enabled"`
	URL      string `yaml:"url" envconfig:"url"`             // e.g., "http://homeassistant.local:8123"
	Token    string `yaml:"token" envconfig:"token"`         // Long-lived access token
	EntityID string `yaml:"entity_id" envconfig:"entity_id"` // e.g., "sensor.acme_flexibility"
}

// ServerConfig holds dashboard settings
type ServerConfig struct {
	Addr      string `yaml:"addr,omitempty" envconfig:"addr"`
	RenderPNG bool   `yaml:"render_png,omitempty" envconfig:"render_png"`
}

// ChromeConfig holds headless browser settings for PNG charts
type ChromeConfig struct {
	ExecPath string        `yaml:"exec_path,omitempty" envconfig:"exec_path"`
	Timeout  time.Duration `yaml:"timeout,omitempty" envconfig:"timeout"`
	Width    int64         `yaml:"width,omitempty" envconfig:"width"`
	Height   int64         `yaml:"height,omitempty" envconfig:"height"`
}

// Default returns a config with every defaulted setting filled in
func Default() *Config {
	return &Config{
		Workbook: WorkbookConfig{Path: DefaultWorkbook, Sheet: DefaultSheet},
		Analysis: AnalysisConfig{DefaultK: DefaultK},
		Database: DatabaseConfig{Path: DefaultDBPath},
		MQTT:     MQTTConfig{TopicPrefix: DefaultTopicPrefix, ClientID: DefaultClientID},
		Server:   ServerConfig{Addr: DefaultAddr},
	}
}

// Load reads the config file and applies environment overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Missing file means defaults plus environment
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate checks ranges and required fields of enabled sinks
func (c *Config) Validate() error {
	if k := c.Analysis.DefaultK; k != 0 && (k < 1 || k > 5) {
		return fmt.Errorf("analysis.default_k must be between 1 and 5, got %d", k)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker address is required when enabled")
	}
	if c.HomeAssistant.Enabled {
		if c.HomeAssistant.URL == "" {
			return fmt.Errorf("Home Assistant URL is required when enabled")
		}
		if c.HomeAssistant.Token == "" {
			return fmt.Errorf("Home Assistant token is required when enabled")
		}
		if c.HomeAssistant.EntityID == "" {
			return fmt.Errorf("Home Assistant entity_id is required when enabled")
		}
	}
	return nil
}

// GetWorkbook returns the workbook path, falling back to DefaultWorkbook
func (c *Config) GetWorkbook() string {
	if c.Workbook.Path != "" {
		return c.Workbook.Path
	}
	return DefaultWorkbook
}

// GetSheet returns the sheet name, falling back to DefaultSheet
func (c *Config) GetSheet() string {
	if c.Workbook.Sheet != "" {
		return c.Workbook.Sheet
	}
	return DefaultSheet
}

// GetDefaultK returns the default sensitivity with a fallback of 2
func (c *Config) GetDefaultK() int {
	if c.Analysis.DefaultK <= 0 {
		return DefaultK
	}
	return c.Analysis.DefaultK
}

// GetDBPath returns the analysis history database path
func (c *Config) GetDBPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return DefaultDBPath
}

// GetAddr returns the dashboard listen address
func (c *Config) GetAddr() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return DefaultAddr
}

// GetTopicPrefix returns the MQTT topic prefix
func (c *MQTTConfig) GetTopicPrefix() string {
	if c.TopicPrefix != "" {
		return c.TopicPrefix
	}
	return DefaultTopicPrefix
}

// GetClientID returns the MQTT client id
func (c *MQTTConfig) GetClientID() string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return DefaultClientID
}
