package config

import (
	"os"
	"testing"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, "DATABASE_URL", "postgres://localhost:5432/reports")
	setEnv(t, "ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("expected default port 3000, got %q", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %q", cfg.OpenAIModel)
	}
	if cfg.UploadMaxBytes != 25*1024*1024 {
		t.Errorf("expected default upload cap, got %d", cfg.UploadMaxBytes)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setEnv(t, "DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestValidate_AuthSecretRequiredOutsideDev(t *testing.T) {
	cfg := &Config{Env: "production", UploadMaxBytes: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing AUTH_SECRET in production")
	}

	cfg.AuthSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TopicRequiresOperator(t *testing.T) {
	cfg := &Config{Env: "development", UploadMaxBytes: 1, HederaTopicID: "0.0.1234"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when topic is set without operator credentials")
	}

	cfg.HederaAccountID = "0.0.1001"
	cfg.HederaPrivateKey = "302e0201..."
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.HederaConfigured() {
		t.Error("expected HederaConfigured to be true")
	}
}
