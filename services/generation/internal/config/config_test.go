package config

import (
	"os"
	"path/filepath"
	"testing"
)

const baseConfig = `
logLevel: "info"
redisAddr: "localhost:6379"
provider: "openai"
providerApiKey: "sk-test"
providerModel: "gpt-4o-mini"
subjectServiceURL: "http://localhost:8082"
workerCount: 10
batchSize: 5
batchTimeoutSeconds: 2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("GENERATION_WORKER_COUNT", "4")
	t.Setenv("GENERATION_BATCH_SIZE", "8")
	t.Setenv("GENERATION_PROVIDER_MODEL", "gpt-4o")

	cfg, err := Load(writeConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6380" {
		t.Fatalf("redisAddr = %q, want env override", cfg.RedisAddr)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("workerCount = %d, want 4", cfg.WorkerCount)
	}
	if cfg.BatchSize != 8 {
		t.Fatalf("batchSize = %d, want 8", cfg.BatchSize)
	}
	if cfg.ProviderModel != "gpt-4o" {
		t.Fatalf("providerModel = %q, want gpt-4o", cfg.ProviderModel)
	}
	if cfg.BatchTimeoutSeconds != 2 {
		t.Fatalf("batchTimeoutSeconds = %d, want file value 2", cfg.BatchTimeoutSeconds)
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	content := `
provider: "openai"
providerApiKey: "sk-test"
providerModel: "gpt-4o-mini"
subjectServiceURL: "http://localhost:8082"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for missing redisAddr")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	content := `
redisAddr: "localhost:6379"
provider: "claude"
providerApiKey: "sk-test"
providerModel: "m"
subjectServiceURL: "http://localhost:8082"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadCompatProviderNeedsBaseURL(t *testing.T) {
	content := `
redisAddr: "localhost:6379"
provider: "openai-compat"
providerApiKey: "sk-test"
providerModel: "m"
subjectServiceURL: "http://localhost:8082"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for openai-compat without base url")
	}
}

func TestLoadPartialMinioRejected(t *testing.T) {
	content := baseConfig + `
minioEndpoint: "localhost:9000"
minioAccessKey: "minio"
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatalf("expected error for incomplete minio settings")
	}
}
