package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	MongoURI         string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase    string `envconfig:"MONGO_DATABASE" default:"checkout"`
	MongoMaxPoolSize uint64 `envconfig:"MONGO_MAX_POOL_SIZE" default:"100"`
	MongoMinPoolSize uint64 `envconfig:"MONGO_MIN_POOL_SIZE" default:"10"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	PostgresHost      string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort      int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser      string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword  string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB        string `envconfig:"POSTGRES_DB" default:"orders"`
	MigrationsDirPath string `envconfig:"MIGRATIONS_DIR" default:"./migrations"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`

	RateServiceURL       string        `envconfig:"RATE_SERVICE_URL" default:"http://localhost:8081"`
	ShippingContractCode string        `envconfig:"SHIPPING_CONTRACT_CODE" default:""`
	ShippingClientCode   string        `envconfig:"SHIPPING_CLIENT_CODE" default:""`
	QuoteDebounce        time.Duration `envconfig:"QUOTE_DEBOUNCE" default:"800ms"`
	QuoteRequestTimeout  time.Duration `envconfig:"QUOTE_REQUEST_TIMEOUT" default:"10s"`

	IdentityServiceURL string `envconfig:"IDENTITY_SERVICE_URL" default:"http://localhost:8082"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("checkout", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}
