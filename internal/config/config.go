package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the sync server and the bootstrap
// reconciler. Every value can come from an optional config.yaml or from the
// environment; the environment wins.
type Config struct {
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Server struct {
		Host   string `mapstructure:"host"`
		Port   int    `mapstructure:"port"`
		Secret string `mapstructure:"secret"`
	} `mapstructure:"server"`
	Platform struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"platform"`
	Owner struct {
		Email    string `mapstructure:"email"`
		Password string `mapstructure:"password"`
	} `mapstructure:"owner"`
	EncryptionKey string `mapstructure:"encryption_key"`
	BaseDir       string `mapstructure:"base_dir"`
}

var envBindings = map[string]string{
	"db.host":        "DB_HOST",
	"db.port":        "DB_PORT",
	"db.user":        "DB_USER",
	"db.password":    "DB_PASSWORD",
	"db.name":        "DB_NAME",
	"db.sslmode":     "DB_SSLMODE",
	"server.host":    "SERVER_HOST",
	"server.port":    "SERVER_PORT",
	"server.secret":  "WEBHOOK_SECRET",
	"platform.url":   "PLATFORM_URL",
	"owner.email":    "OWNER_EMAIL",
	"owner.password": "OWNER_PASSWORD",
	"encryption_key": "ENCRYPTION_KEY",
	"base_dir":       "SYNC_BASE_DIR",
}

// LoadConfig loads the configuration from an optional config file and the
// environment. An absent config file is not an error; missing required
// values are reported by the Validate helpers, not here.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3456)
	v.SetDefault("platform.url", "http://n8n:5678")
	v.SetDefault("base_dir", ".")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Platform.URL = strings.TrimRight(strings.TrimSpace(config.Platform.URL), "/")

	return &config, nil
}

// ValidateDB reports missing database connection parameters. The bootstrap
// reconciler treats these as fatal configuration errors.
func (c *Config) ValidateDB() error {
	var missing []string
	if c.DB.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.DB.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.DB.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing database configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ConnString builds the pgx connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}
