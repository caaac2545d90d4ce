package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			APIKey:     "test-key",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
		},
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200},
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
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_MissingDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty database.addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing embedding.model")
	}
}

func TestValidate_OverlapNotBelowSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking = ChunkingConfig{Size: 100, Overlap: 100}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when overlap >= size")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking = ChunkingConfig{}
	cfg.ApplyDefaults()

	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", cfg.Chunking.Size, cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.MaxResults != 3 {
		t.Errorf("retrieval.max_results default = %d, want 3", cfg.Retrieval.MaxResults)
	}
	if cfg.Retrieval.ScoreThreshold <= 0 {
		t.Error("retrieval.score_threshold default not applied")
	}
	if cfg.TTS.CacheTTLHrs != 7*24 {
		t.Errorf("tts.cache_ttl_hours default = %d, want %d", cfg.TTS.CacheTTLHrs, 7*24)
	}
	if cfg.Generation.Model == "" {
		t.Error("generation.model default not applied")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("DOCENGINE_TEST_KEY", "secret")
	defer os.Unsetenv("DOCENGINE_TEST_KEY")

	in := []byte("api_key: ${DOCENGINE_TEST_KEY}\nmodel: ${DOCENGINE_TEST_MISSING:-fallback-model}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: fallback-model\n"
	if out != want {
		t.Errorf("expanded:\ngot:  %q\nwant: %q", out, want)
	}
}
