package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, CartStorageRedis, cfg.CartStorage)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.CheckoutSubmitTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PaymentMethodsTTL)
	assert.Equal(t, "https://viacep.com.br/ws", cfg.AddressLookupURL)
	assert.Equal(t, 5*time.Second, cfg.AddressLookupTimeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CART_STORAGE", "Mongo")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CHECKOUT_SUBMIT_TIMEOUT", "3s")
	t.Setenv("KAFKA_CONSUMER_GROUP", "storefront-a")
	t.Setenv("ADDRESS_LOOKUP_URL", "http://cep.internal/ws")

	cfg := Load()

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, CartStorageMongo, cfg.CartStorage)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.CheckoutSubmitTimeout)
	assert.Equal(t, "storefront-a", cfg.KafkaConsumerGroup)
	assert.Equal(t, "http://cep.internal/ws", cfg.AddressLookupURL)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("CHECKOUT_SUBMIT_TIMEOUT", "-1s")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 10*time.Second, cfg.CheckoutSubmitTimeout)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}
