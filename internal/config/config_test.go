package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		Port:                     "5002",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		JWTTTLMinutes:            60,
		DBDriver:                 "sqlite",
		DBPassword:               "secure-password",
		DBSSLMode:                "require",
		FeedPageSize:             10,
		FeedReadMoreThreshold:    120,
		FeedRequestTimeoutSecond: 15,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid development", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"zero page size", func(c *Config) { c.FeedPageSize = 0 }, true},
		{"zero read-more threshold", func(c *Config) { c.FeedReadMoreThreshold = 0 }, true},
		{"zero timeout", func(c *Config) { c.FeedRequestTimeoutSecond = 0 }, true},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production postgres without TLS", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "postgres"
			c.DBSSLMode = "disable"
		}, true},
		{"production postgres with TLS", func(c *Config) {
			c.Env = "prod"
			c.DBDriver = "postgres"
			c.DBSSLMode = "verify-full"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_DRIVER")
	defer os.Unsetenv("FEED_API_URL")
	defer viper.Reset()

	os.Setenv("APP_ENV", "test")
	os.Setenv("DB_DRIVER", "  SQLite ")
	os.Setenv("FEED_API_URL", "http://10.0.0.2:5002/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "http://10.0.0.2:5002", c.FeedAPIURL)
	assert.Equal(t, 10, c.FeedPageSize)
	assert.Equal(t, 120, c.FeedReadMoreThreshold)
	assert.Equal(t, 15*time.Second, c.FeedRequestTimeout())
}

func TestConfig_KafkaBrokerList(t *testing.T) {
	c := &Config{KafkaBrokers: "kafka-1:9092, ,kafka-2:9092"}
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.KafkaBrokerList())
	assert.Empty(t, (&Config{}).KafkaBrokerList())
}
