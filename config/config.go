package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:":8080"`
	GrpcPort string `envconfig:"GRPC_PORT" default:":50052"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	AdminToken string `envconfig:"ADMIN_TOKEN"`

	KafkaBrokers    string `envconfig:"KAFKA_BROKERS"`
	KafkaOrderTopic string `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
	PaymentBaseURL  string `envconfig:"PAYMENT_BASE_URL" default:"https://pay.example.local/checkout"`

	DispatchWorkers   int `envconfig:"DISPATCH_WORKERS" default:"2"`
	DispatchQueueSize int `envconfig:"DISPATCH_QUEUE_SIZE" default:"128"`

	OrderNumberMaxAttempts int `envconfig:"ORDER_NUMBER_MAX_ATTEMPTS" default:"5"`

	Pricing PricingConfig
}

// PricingConfig overrides the default delivery and discount thresholds.
// envconfig nests it under the PRICING_ prefix.
type PricingConfig struct {
	FreeCourierThreshold decimal.Decimal `envconfig:"FREE_COURIER_THRESHOLD" default:"2000"`
	CourierCost          decimal.Decimal `envconfig:"COURIER_COST" default:"300"`
	PostCost             decimal.Decimal `envconfig:"POST_COST" default:"400"`
	DiscountThreshold    decimal.Decimal `envconfig:"DISCOUNT_THRESHOLD" default:"3000"`
	DiscountRate         decimal.Decimal `envconfig:"DISCOUNT_RATE" default:"0.05"`
}

var (
	config Config
	once   sync.Once
)

func LoadConfig(logger *logrus.Logger) *Config {
	once.Do(func() {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			logger.Warnf("Error loading .env file (but continuing): %v", err)
		} else if err == nil {
			logger.Info("Loaded configuration from .env file")
		}

		cfg, err := fromEnv()
		if err != nil {
			logger.Fatalf("Failed to process configuration from environment variables: %v", err)
		}
		config = *cfg

		logger.Infof("Configuration loaded: storage=%s HTTP Port=%s GRPC Port=%s LogLevel=%s",
			config.StorageDriver, config.HTTPPort, config.GrpcPort, config.LogLevel)
		if config.KafkaBrokers == "" {
			logger.Warn("Configuration: KAFKA_BROKERS is not set, order confirmations will only be logged")
		}
	})
	return &config
}

func fromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for storage driver %q", c.StorageDriver)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.OrderNumberMaxAttempts < 1 {
		return fmt.Errorf("ORDER_NUMBER_MAX_ATTEMPTS must be at least 1, got %d", c.OrderNumberMaxAttempts)
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1, got %d", c.DispatchWorkers)
	}
	if c.DispatchQueueSize < 0 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE cannot be negative")
	}
	if c.Pricing.DiscountRate.IsNegative() || c.Pricing.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("PRICING_DISCOUNT_RATE must be between 0 and 1")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
