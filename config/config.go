package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	DatabaseDriver     string
	DatabaseURL        string
	Port               string
	GoEnv              string
	LogLevel           string
	Auth0Domain        string
	Auth0Audience      string
	Auth0WriteScope    string // extra scope required on write routes, empty to rely on roles alone
	CORSAllowedOrigins []string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	AMQPURL            string
	AMQPQueue          string
	NotifyTimeout      time.Duration
	AWSRegion          string
	AWSS3Bucket        string
	AWSS3Prefix        string
	AWSS3Endpoint      string // S3-compatible stores such as MinIO
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	OrderTaskGuard     bool
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	// Determine which environment file to load
	env := v.GetString("GO_ENV")

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In containers the environment is set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseDriver:     strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		Port:               v.GetString("PORT"),
		GoEnv:              v.GetString("GO_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Auth0Domain:        v.GetString("AUTH0_DOMAIN"),
		Auth0Audience:      v.GetString("AUTH0_AUDIENCE"),
		Auth0WriteScope:    v.GetString("AUTH0_WRITE_SCOPE"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		AMQPURL:            v.GetString("AMQP_URL"),
		AMQPQueue:          v.GetString("AMQP_QUEUE"),
		NotifyTimeout:      time.Duration(v.GetInt("NOTIFY_TIMEOUT_SECONDS")) * time.Second,
		AWSRegion:          v.GetString("AWS_REGION"),
		AWSS3Bucket:        v.GetString("AWS_S3_BUCKET"),
		AWSS3Prefix:        v.GetString("AWS_S3_PREFIX"),
		AWSS3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
		AWSAccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		OrderTaskGuard:     v.GetBool("ORDER_TASK_GUARD"),
	}

	if config.DatabaseDriver == DriverSQLite && config.DatabaseURL == "" {
		config.DatabaseURL = "plant.db"
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AMQP_QUEUE", "plant.order.events")
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 5)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_S3_PREFIX", "order-events")
	v.SetDefault("ORDER_TASK_GUARD", false)
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.AWSS3Bucket != "" && (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// AuthEnabled reports whether JWT validation should guard the API
func (c *Config) AuthEnabled() bool {
	return c.Auth0Domain != ""
}

// splitList turns a comma separated value into a trimmed slice
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
