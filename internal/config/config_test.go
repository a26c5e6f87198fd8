package config

import "testing"

func TestValidateDefaults(t *testing.T) {
	cfg := &Config{
		GinMode:                  "debug",
		GenerationTimeoutSeconds: 60,
		MaxUnitRetries:           3,
	}
	// デバッグモードでは外部サービスの設定は任意。
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateReleaseRequiresSecrets(t *testing.T) {
	cfg := &Config{
		GinMode:                  "release",
		GenerationTimeoutSeconds: 60,
		MaxUnitRetries:           3,
		DatabaseURL:              "postgres://localhost/examforge",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY in release mode")
	}

	cfg.OpenAIAPIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL in release mode")
	}
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := &Config{
		GinMode:                  "debug",
		GenerationTimeoutSeconds: 0,
		MaxUnitRetries:           3,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive generation timeout")
	}

	cfg.GenerationTimeoutSeconds = 60
	cfg.MaxUnitRetries = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive retry limit")
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	t.Setenv("PORT", "")
	t.Setenv("MAX_UNIT_RETRIES", "")
	t.Setenv("JOB_EXPIRE_MINUTES", "")
	t.Setenv("MAX_FILE_SIZE", "")
	t.Setenv("MAX_RAW_TEXT_BYTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected default port: %s", cfg.Port)
	}
	if cfg.MaxUnitRetries != 3 {
		t.Fatalf("unexpected default retry limit: %d", cfg.MaxUnitRetries)
	}
	if cfg.JobExpireMinutes != 30 {
		t.Fatalf("unexpected default job ttl: %d", cfg.JobExpireMinutes)
	}
	if cfg.MaxFileSize != 20971520 {
		t.Fatalf("unexpected default max file size: %d", cfg.MaxFileSize)
	}
	if cfg.MaxRawTextBytes != 1024*1024 {
		t.Fatalf("unexpected default raw text limit: %d", cfg.MaxRawTextBytes)
	}
}
