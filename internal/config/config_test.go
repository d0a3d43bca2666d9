package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CART_TAX_RATE", "")
	t.Setenv("CART_TABLE", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DB_SHARD_COUNT", "")

	cfg := Load()
	if cfg.TaxRate != 21 {
		t.Fatalf("TaxRate = %v, want 21", cfg.TaxRate)
	}
	if cfg.Table != "shopping_cart" {
		t.Fatalf("Table = %q, want shopping_cart", cfg.Table)
	}
	if len(cfg.KafkaBrokers) != 3 {
		t.Fatalf("KafkaBrokers = %v, want the three default brokers", cfg.KafkaBrokers)
	}
	if cfg.ShardCount != 1 {
		t.Fatalf("ShardCount = %d, want 1", cfg.ShardCount)
	}
}

func TestLoadSplitsKafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg := Load()
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Fatalf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}
}

func TestLoadClampsShardCount(t *testing.T) {
	for _, v := range []string{"0", "-3"} {
		t.Setenv("DB_SHARD_COUNT", v)
		if got := Load().ShardCount; got != 1 {
			t.Fatalf("DB_SHARD_COUNT=%s: ShardCount = %d, want 1", v, got)
		}
	}
}
