package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// Store backends accepted by Auth.Store.
const (
	StoreAuto     = "auto"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secretKey"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

type AuthConfig struct {
	// Store selects the user persistence backend: auto, postgres or memory.
	Store             string `mapstructure:"store"`
	BcryptCost        int    `mapstructure:"bcryptCost"`
	MinPasswordLength int    `mapstructure:"minPasswordLength"`
	// LoginRateLimit is the number of login/register requests allowed per IP per minute.
	LoginRateLimit int `mapstructure:"loginRateLimit"`
}

type Config struct {
	Mode         string `mapstructure:"mode"`
	Dotenv       string `mapstructure:"dotenv"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"MetricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
	Auth AuthConfig `mapstructure:"auth"`
	JWT  JWTConfig  `mapstructure:"jwt"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_SECRETKEY, AUTH_STORE, REPOSITORIES_POSTGRES_HOST, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Auth.Store {
	case StoreAuto, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid auth.store %q: want auto, postgres or memory", c.Auth.Store)
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secretKey must be set")
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return fmt.Errorf("jwt.accessTokenTTL must be positive")
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("auth.minPasswordLength must be at least 1")
	}
	return nil
}
