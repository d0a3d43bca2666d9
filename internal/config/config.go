package config

import (
	"os"
	"strconv"
	"strings"

	"cart-service/internal/entity"
)

// Config collects the per-deployment cart settings. It is loaded once at
// startup and injected at construction time instead of being read from
// ambient globals.
type Config struct {
	// TaxRate is the default tax rate in percent applied to new items.
	TaxRate float64
	// Table is the name of the stored-cart table.
	Table string
	// Format controls display-only number formatting.
	Format entity.NumberFormat

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string
	ShardCount   int
	JWTSecret    string
	ListenAddr   string
}

// Load reads the configuration from the environment, falling back to
// sensible defaults.
func Load() Config {
	shardCount := envInt("DB_SHARD_COUNT", 1)
	if shardCount < 1 {
		// the shard router divides by this
		shardCount = 1
	}

	return Config{
		TaxRate: envFloat("CART_TAX_RATE", 21),
		Table:   envString("CART_TABLE", "shopping_cart"),
		Format: entity.NumberFormat{
			Decimals:     envInt("CART_FORMAT_DECIMALS", 2),
			DecimalPoint: envString("CART_FORMAT_DECIMAL_POINT", "."),
			ThousandsSep: envString("CART_FORMAT_THOUSAND_SEPARATOR", ""),
		},
		RedisAddr:    envString("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: strings.Split(envString("KAFKA_BROKERS", "localhost:9092,localhost:9093,localhost:9094"), ","),
		KafkaTopic:   envString("KAFKA_CART_TOPIC", "cart-topic"),
		ShardCount:   shardCount,
		JWTSecret:    os.Getenv("CART_JWT_SECRET"),
		ListenAddr:   envString("LISTEN_ADDR", ":8084"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
