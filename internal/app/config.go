package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config описывает настройки запуска микросервиса заказов.
type Config struct {
	// RPCAddr — адрес TCP RPC сервера с командами createOrder/findAllOrders/etc.
	RPCAddr string
	// MetricsAddr — адрес HTTP-сервера с /metrics и health-проверками.
	MetricsAddr string
	// PostgresDSN — строка подключения к Postgres. Пустая строка включает
	// in-memory хранилище.
	PostgresDSN string
	// KafkaBrokers — список брокеров через запятую. Пустая строка отключает
	// публикацию событий.
	KafkaBrokers string
	// ClientsAddr и ProductsAddr — адреса внешних микросервисов. Пустые
	// значения включают mock-реализации.
	ClientsAddr  string
	ProductsAddr string
	// CallTimeout — таймаут каждого удалённого вызова из оркестратора.
	CallTimeout time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
}

// DefaultConfig возвращает конфигурацию для локальной разработки.
func DefaultConfig() Config {
	return Config{
		RPCAddr:            ":4000",
		MetricsAddr:        ":9090",
		CallTimeout:        5 * time.Second,
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  5,
	}
}

// ReadConfig собирает конфигурацию из переменных окружения с префиксом ORDERS_,
// подхватывая .env файл, если он есть рядом с бинарником.
func ReadConfig() Config {
	_ = godotenv.Load()
	return readConfigFromEnv(os.LookupEnv)
}

func readConfigFromEnv(lookup func(string) (string, bool)) Config {
	cfg := DefaultConfig()

	cfg.RPCAddr = envString(lookup, "ORDERS_RPC_ADDR", cfg.RPCAddr)
	cfg.MetricsAddr = envString(lookup, "ORDERS_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = envString(lookup, "ORDERS_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.KafkaBrokers = envString(lookup, "ORDERS_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ClientsAddr = envString(lookup, "ORDERS_CLIENTS_ADDR", cfg.ClientsAddr)
	cfg.ProductsAddr = envString(lookup, "ORDERS_PRODUCTS_ADDR", cfg.ProductsAddr)
	cfg.CallTimeout = envDuration(lookup, "ORDERS_CALL_TIMEOUT", cfg.CallTimeout)
	cfg.OutboxPollInterval = envDuration(lookup, "ORDERS_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt(lookup, "ORDERS_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt(lookup, "ORDERS_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)

	return cfg
}

func envString(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func envDuration(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	value, ok := lookup(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envInt(lookup func(string) (string, bool), key string, fallback int) int {
	value, ok := lookup(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
