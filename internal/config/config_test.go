package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	var c Config
	if err := Load("", &c); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Learner.MaxSequenceLength != 30 || c.Learner.MinMessagesForTraining != 2 {
		t.Fatalf("unexpected learner defaults: %+v", c.Learner)
	}
	if c.Chag.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d, want 5", c.Chag.MaxAttempts)
	}
	if len(c.Chag.TriggerWords) != 2 {
		t.Fatalf("trigger words = %v", c.Chag.TriggerWords)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "server:\n  port: \"6001\"\nlearner:\n  epochs: 3\nchag:\n  bot_label: Guh\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	var c Config
	if err := Load(path, &c); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Port != "6001" || c.Learner.Epochs != 3 || c.Chag.BotLabel != "Guh" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Learner.NextWords != 20 {
		t.Fatalf("default lost: next_words = %d", c.Learner.NextWords)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHAG_LLM_MODEL", "distilgpt2")
	var c Config
	if err := Load("", &c); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.LLM.Model != "distilgpt2" {
		t.Fatalf("model = %q", c.LLM.Model)
	}
}

func TestLoad_EnvOverridesKeysWithoutDefaultValue(t *testing.T) {
	t.Setenv("CHAG_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CHAG_DATABASE_SQLITE_PATH", "/var/lib/learner/events.db")
	t.Setenv("CHAG_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("CHAG_MINIO_USE_SSL", "true")
	t.Setenv("CHAG_DATABASE_REDIS_ADDR", "redis:6379")
	t.Setenv("CHAG_DATABASE_REDIS_DB", "2")
	t.Setenv("CHAG_LLM_API_KEY", "sk-test")
	t.Setenv("CHAG_LEARNER_SEED", "42")

	var c Config
	if err := Load("", &c); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Kafka.Brokers != "kafka-1:9092,kafka-2:9092" {
		t.Fatalf("kafka brokers = %q", c.Kafka.Brokers)
	}
	if c.Database.SQLite.Path != "/var/lib/learner/events.db" {
		t.Fatalf("sqlite path = %q", c.Database.SQLite.Path)
	}
	if c.MinIO.Endpoint != "minio:9000" || !c.MinIO.UseSSL {
		t.Fatalf("minio = %+v", c.MinIO)
	}
	if c.Database.Redis.Addr != "redis:6379" || c.Database.Redis.DB != 2 {
		t.Fatalf("redis = %+v", c.Database.Redis)
	}
	if c.LLM.APIKey != "sk-test" || c.Learner.Seed != 42 {
		t.Fatalf("api key = %q, seed = %d", c.LLM.APIKey, c.Learner.Seed)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var c Config
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &c); err == nil {
		t.Fatal("expected error for missing file")
	}
}
