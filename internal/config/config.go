// Package config provides YAML-based configuration loading for Pixelprobe.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Pixelprobe configuration, loaded from
// pixelprobe.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Backends    BackendsConfig    `yaml:"backends"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	UploadDir   string   `yaml:"upload_dir"`
}

// DatabaseConfig selects the storage backend. Driver is sqlite (default) or
// mysql; DSN is a file path for sqlite, a go-sql-driver DSN for mysql.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ClassifierConfig controls the external classification tier. An empty
// endpoint disables it and classification runs on local rules alone.
type ClassifierConfig struct {
	Endpoint    string   `yaml:"endpoint"`
	APIKey      string   `yaml:"api_key"`
	Timeout     Duration `yaml:"timeout"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
}

// BackendsConfig points at the inference backend service.
type BackendsConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// LeaderboardConfig controls observation retention. Zero retention keeps
// observations for the life of the process.
type LeaderboardConfig struct {
	Retention     Duration `yaml:"retention"`
	PruneSchedule string   `yaml:"prune_schedule"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults rather than an error, so the server
// runs out of the box.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if c.Server.UploadDir == "" {
		c.Server.UploadDir = "uploads"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "pixelprobe.db"
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = Duration(30 * time.Second)
	}
	if c.Classifier.MaxTokens == 0 {
		c.Classifier.MaxTokens = 100
	}
	if c.Classifier.Temperature == 0 {
		c.Classifier.Temperature = 0.7
	}
	if c.Backends.BaseURL == "" {
		c.Backends.BaseURL = "http://localhost:8000"
	}
	if c.Backends.Timeout == 0 {
		c.Backends.Timeout = Duration(30 * time.Second)
	}
	if c.Leaderboard.PruneSchedule == "" {
		c.Leaderboard.PruneSchedule = "@every 10m"
	}
}

// applyEnv overlays secrets and endpoints from the environment, so API keys
// stay out of the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("PIXELPROBE_API_KEY"); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv("PIXELPROBE_CLASSIFIER_URL"); v != "" {
		c.Classifier.Endpoint = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "mysql" {
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required for mysql")
	}
	if c.Classifier.Timeout < 0 {
		errs = append(errs, "classifier.timeout must not be negative")
	}
	if c.Leaderboard.Retention < 0 {
		errs = append(errs, "leaderboard.retention must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
