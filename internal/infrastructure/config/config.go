// Package config loads the application configuration from a TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App   AppConfig
	Log   LogConfig
	Alma  AlmaConfig
	Feed  FeedConfig
	SFTP  SFTPConfig
	Email EmailConfig
	AWS   AWSConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name    string
	Env     string // development, staging, production
	OrgName string // organization name printed on reports and cover sheets
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AlmaConfig holds the ILS API connection settings
type AlmaConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
}

// FeedConfig holds the feed policy settings
type FeedConfig struct {
	// EligiblePaymentMethods lists the payment methods the AP feed accepts
	EligiblePaymentMethods []string
	// SequenceParameterPath is the SSM path prefix holding the per-batch-key
	// file sequence parameters
	SequenceParameterPath string
}

// SFTPConfig holds the AP dropbox connection settings
type SFTPConfig struct {
	Host           string
	Port           string
	User           string
	PrivateKeyPath string
	HostKeyPath    string
	RemoteDir      string
}

// EmailConfig holds the report mailer settings
type EmailConfig struct {
	From             string
	ReviewRecipients []string
	FinalRecipients  []string
}

// AWSConfig holds AWS client settings
type AWSConfig struct {
	Region string
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SAP_ prefix (e.g., SAP_ALMA_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars carry the run
	}

	v.SetEnvPrefix("SAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			OrgName: v.GetString("app.org_name"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Alma: AlmaConfig{
			BaseURL:    v.GetString("alma.base_url"),
			APIKey:     v.GetString("alma.api_key"),
			Timeout:    v.GetDuration("alma.timeout"),
			MaxRetries: v.GetUint64("alma.max_retries"),
		},
		Feed: FeedConfig{
			EligiblePaymentMethods: v.GetStringSlice("feed.eligible_payment_methods"),
			SequenceParameterPath:  v.GetString("feed.sequence_parameter_path"),
		},
		SFTP: SFTPConfig{
			Host:           v.GetString("sftp.host"),
			Port:           v.GetString("sftp.port"),
			User:           v.GetString("sftp.user"),
			PrivateKeyPath: v.GetString("sftp.private_key_path"),
			HostKeyPath:    v.GetString("sftp.host_key_path"),
			RemoteDir:      v.GetString("sftp.remote_dir"),
		},
		Email: EmailConfig{
			From:             v.GetString("email.from"),
			ReviewRecipients: v.GetStringSlice("email.review_recipients"),
			FinalRecipients:  v.GetStringSlice("email.final_recipients"),
		},
		AWS: AWSConfig{
			Region: v.GetString("aws.region"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sapinvoices"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.OrgName == "" {
		cfg.App.OrgName = "UNIVERSITY LIBRARIES"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Alma.Timeout <= 0 {
		cfg.Alma.Timeout = 30 * time.Second
	}
	if cfg.Alma.MaxRetries == 0 {
		cfg.Alma.MaxRetries = 3
	}
	if len(cfg.Feed.EligiblePaymentMethods) == 0 {
		cfg.Feed.EligiblePaymentMethods = []string{"ACCOUNTINGDEPARTMENT"}
	}
	if cfg.Feed.SequenceParameterPath == "" {
		cfg.Feed.SequenceParameterPath = "/apps/sapinvoices/sequence/"
	}
	if cfg.SFTP.Port == "" {
		cfg.SFTP.Port = "22"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
}

// Validate checks the configuration for values that would make a run fail or
// misbehave. Connection settings for collaborators are validated at wiring
// time instead, so review runs work with a partial configuration.
func (c *Config) Validate() error {
	if c.Alma.BaseURL == "" {
		return fmt.Errorf("alma.base_url is required")
	}
	if _, err := url.Parse(c.Alma.BaseURL); err != nil {
		return fmt.Errorf("alma.base_url is invalid: %w", err)
	}
	if c.Alma.APIKey == "" {
		return fmt.Errorf("alma.api_key is required")
	}

	switch c.App.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("app.env must be development, staging, or production, got %q", c.App.Env)
	}

	// a production run pointed at a test counter would burn or reuse
	// sequence numbers on the real AP side
	if c.App.Env == "production" && strings.Contains(c.Feed.SequenceParameterPath, "/test/") {
		return fmt.Errorf("feed.sequence_parameter_path %q looks like a test path in a production environment",
			c.Feed.SequenceParameterPath)
	}

	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
