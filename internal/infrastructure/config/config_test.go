package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Alma.BaseURL = "https://api-na.hosted.exlibrisgroup.com/almaws/v1"
	cfg.Alma.APIKey = "test-key"
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "sapinvoices", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.Alma.Timeout)
	assert.Equal(t, uint64(3), cfg.Alma.MaxRetries)
	assert.Equal(t, []string{"ACCOUNTINGDEPARTMENT"}, cfg.Feed.EligiblePaymentMethods)
	assert.Equal(t, "22", cfg.SFTP.Port)

	t.Run("production defaults to json logs", func(t *testing.T) {
		cfg := &Config{}
		cfg.App.Env = "production"
		applyDefaults(cfg)
		assert.Equal(t, "json", cfg.Log.Format)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("missing alma base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Alma.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing alma API key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Alma.APIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown environment", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "qa"
		assert.Error(t, cfg.Validate())
	})

	t.Run("test sequence path rejected in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "production"
		cfg.Feed.SequenceParameterPath = "/test/sapinvoices/sequence/"
		assert.Error(t, cfg.Validate())
	})

	t.Run("test sequence path allowed outside production", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Env = "staging"
		cfg.Feed.SequenceParameterPath = "/test/sapinvoices/sequence/"
		assert.NoError(t, cfg.Validate())
	})
}
