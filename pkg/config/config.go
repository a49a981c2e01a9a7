package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port                    string        `envconfig:"PORT" default:"8080"`
	Env                     string        `envconfig:"ENV" default:"development"`
	LogLevel                string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	FirebaseCredentialsPath string        `envconfig:"FIREBASE_CREDENTIALS_PATH" default:"./firebase_credentials.json"`
	PostgresConnStr         string        `envconfig:"POSTGRES_CONN_STR"`
	MongoURI                string        `envconfig:"MONGO_URI"`
	MongoDatabase           string        `envconfig:"MONGO_DATABASE" default:"safecircle"`
	MetricsPort             string        `envconfig:"METRICS_PORT" default:"9090"`
	JWTSecret               string        `envconfig:"JWT_SECRET"`
	JWTTTL                  time.Duration `envconfig:"JWT_TTL" default:"1h"`
	PushChannelID           string        `envconfig:"PUSH_CHANNEL_ID" default:"panic_channel"`
	PushBatchSize           int           `envconfig:"PUSH_BATCH_SIZE" default:"500"`
	BreakerFailureThreshold uint32        `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerTimeout          time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
}

// Load reads an optional .env file and then the process environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	loadedDotenv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, loadedDotenv, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, loadedDotenv, err
	}
	return &cfg, loadedDotenv, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI environment variable not set"))
	}
	if c.PostgresConnStr == "" {
		errs = append(errs, errors.New("POSTGRES_CONN_STR environment variable not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable not set"))
	}
	if c.PushBatchSize < 1 || c.PushBatchSize > 500 {
		errs = append(errs, fmt.Errorf("PUSH_BATCH_SIZE must be between 1 and 500, got %d", c.PushBatchSize))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
