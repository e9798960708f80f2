package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			APIKey:     "test-key",
			Model:      "Qwen/Qwen3-Embedding-8B",
			Dimensions: 4096,
		},
		Rerank: RerankConfig{
			APIKey: "test-key",
			Model:  "rerank-v3.5",
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding dimensions")
	}
}

func TestValidate_MissingModels(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}

	cfg = validConfig()
	cfg.Rerank.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing rerank model")
	}
}

func TestValidate_KExceedsRecallK(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultK = 100
	cfg.Search.DefaultRecallK = 50

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when default_k exceeds default_recall_k")
	}

	expected := "search.default_k (100) must not exceed search.default_recall_k (50)"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Database.Driver != "valkey" {
		t.Errorf("driver = %q, want valkey", cfg.Database.Driver)
	}
	if cfg.Worker.MaxAttempts != 5 {
		t.Errorf("worker.max_attempts = %d, want 5", cfg.Worker.MaxAttempts)
	}
	if cfg.Worker.BackoffBaseSec != 2 {
		t.Errorf("worker.backoff_base_sec = %d, want 2", cfg.Worker.BackoffBaseSec)
	}
	if cfg.Retention.WindowHours != 24 {
		t.Errorf("retention.window_hours = %d, want 24", cfg.Retention.WindowHours)
	}
	if cfg.Search.DefaultK != 10 || cfg.Search.DefaultRecallK != 50 {
		t.Errorf("search defaults = (%d, %d), want (10, 50)", cfg.Search.DefaultK, cfg.Search.DefaultRecallK)
	}
	if cfg.Queue.Consumer == "" {
		t.Error("queue.consumer not defaulted")
	}
	if cfg.Index.HNSWM != 32 || cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("index defaults = (%d, %d), want (32, 400)", cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LEXIBASE_TEST_KEY", "secret")

	in := []byte("api_key: ${LEXIBASE_TEST_KEY}\nbase_url: ${LEXIBASE_TEST_URL:-https://api.example.com/v1}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nbase_url: https://api.example.com/v1\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
