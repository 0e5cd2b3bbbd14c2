package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/dataapi"
)

const (
	CartStorageRedis = "redis"
	CartStorageMongo = "mongo"
)

type Config struct {
	HTTPPort       string
	GRPCHealthPort string
	LogEnv         string

	RedisAddr     string
	RedisPassword string
	CartStorage   string
	MongoURI      string
	MongoDBName   string

	DB dataapi.Credentials

	AddressLookupURL     string
	AddressLookupTimeout time.Duration

	KafkaBrokers       []string
	KafkaConsumerGroup string

	CheckoutSubmitTimeout time.Duration
	PaymentMethodsTTL     time.Duration
	SessionIdleTimeout    time.Duration
	RequestTimeout        time.Duration
	ShutdownTimeout       time.Duration
	MaxRequestBodySize    int64
}

func Load() *Config {
	return &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50051"),
		LogEnv:         getEnv("LOG_ENV", "production"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CartStorage:   strings.ToLower(getEnv("CART_STORAGE", CartStorageRedis)),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "storefront"),

		DB: dataapi.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "storefront"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "internal/dataapi/migrations"),
		},

		AddressLookupURL:     getEnv("ADDRESS_LOOKUP_URL", "https://viacep.com.br/ws"),
		AddressLookupTimeout: getEnvDuration("ADDRESS_LOOKUP_TIMEOUT", 5*time.Second),

		KafkaBrokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-"+hostname()),

		CheckoutSubmitTimeout: getEnvDuration("CHECKOUT_SUBMIT_TIMEOUT", 10*time.Second),
		PaymentMethodsTTL:     getEnvDuration("PAYMENT_METHODS_TTL", 5*time.Minute),
		SessionIdleTimeout:    getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		RequestTimeout:        getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize:    1 << 20, // 1MB
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Every instance needs its own consumer group so each one sees every order event.
func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}
