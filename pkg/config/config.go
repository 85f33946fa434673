package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig is the top-level service configuration.
type AppConfig struct {
	Service   ServiceConfig   `json:"service" yaml:"service"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Policies  PoliciesConfig  `json:"policies" yaml:"policies"`
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// ServiceConfig configures record scanning.
type ServiceConfig struct {
	DefaultDomain  string `json:"default_domain" yaml:"default_domain"`
	MaxRecordBytes int    `json:"max_record_bytes" yaml:"max_record_bytes"`
	PseudonymSalt  string `json:"pseudonym_salt" yaml:"pseudonym_salt"`
	KeyID          string `json:"key_id" yaml:"key_id"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// PoliciesConfig points at the directory of policy bundle files.
type PoliciesConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// RetentionConfig configures the retention sweeper.
type RetentionConfig struct {
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule"`
	RulePack      string `json:"rule_pack" yaml:"rule_pack"`
}

// GetDefaultConfig returns the default application configuration.
func GetDefaultConfig() *AppConfig {
	return &AppConfig{
		Service: ServiceConfig{
			DefaultDomain:  "default",
			MaxRecordBytes: 1024 * 1024,
			KeyID:          "primary",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Retention: RetentionConfig{
			SweepSchedule: "0 3 * * *",
		},
	}
}

// Load reads configuration from an optional file, applies environment
// overrides and validates the result. An empty path loads defaults plus
// environment overrides only.
func Load(configPath string) (*AppConfig, error) {
	config := GetDefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		ext := strings.ToLower(filepath.Ext(configPath))
		switch ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config file %s: %w", configPath, err)
			}
		case ".json":
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse JSON config file %s: %w", configPath, err)
			}
		default:
			return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Environment overrides take precedence over file values.
func applyEnvOverrides(config *AppConfig) {
	if v := os.Getenv("PRIVACYGUARD_DEFAULT_DOMAIN"); v != "" {
		config.Service.DefaultDomain = v
	}
	if v := os.Getenv("PRIVACYGUARD_MAX_RECORD_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Service.MaxRecordBytes = n
		}
	}
	if v := os.Getenv("PRIVACYGUARD_PSEUDONYM_SALT"); v != "" {
		config.Service.PseudonymSalt = v
	}
	if v := os.Getenv("PRIVACYGUARD_KEY_ID"); v != "" {
		config.Service.KeyID = v
	}
	if v := os.Getenv("PRIVACYGUARD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PRIVACYGUARD_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("PRIVACYGUARD_POLICY_DIR"); v != "" {
		config.Policies.Dir = v
	}
	if v := os.Getenv("PRIVACYGUARD_SWEEP_SCHEDULE"); v != "" {
		config.Retention.SweepSchedule = v
	}
}

// Validate checks the configuration for structural problems.
func (c *AppConfig) Validate() error {
	if c.Service.DefaultDomain == "" {
		return fmt.Errorf("service.default_domain is required")
	}
	if c.Service.MaxRecordBytes <= 0 {
		return fmt.Errorf("service.max_record_bytes must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	if c.Policies.Dir != "" {
		info, err := os.Stat(c.Policies.Dir)
		if err != nil {
			return fmt.Errorf("policies.dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("policies.dir %s is not a directory", c.Policies.Dir)
		}
	}
	return nil
}

// WriteExample writes a commented example configuration file.
func (c *AppConfig) WriteExample(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# privacyguard configuration\n" +
		"# The encryption secret is never stored here; set " +
		"PRIVACYGUARD_MASTER_SECRET in the environment.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
