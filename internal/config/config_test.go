package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
store:
  root_dir: /data/gallery
api:
  signing_secret: shh
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.IntakeFolder != "Uncategorized" {
		t.Errorf("IntakeFolder = %q", cfg.Store.IntakeFolder)
	}
	if cfg.Store.CategoriesFolder != "AutoCategorized" {
		t.Errorf("CategoriesFolder = %q", cfg.Store.CategoriesFolder)
	}
	if cfg.Sync.GetScanInterval() != time.Minute {
		t.Errorf("ScanInterval = %v", cfg.Sync.GetScanInterval())
	}
	if cfg.Sync.GetLockWait() != 10*time.Second {
		t.Errorf("LockWait = %v", cfg.Sync.GetLockWait())
	}
	if cfg.Enrichment.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.Enrichment.MaxRetries)
	}
	if cfg.Enrichment.GetCallInterval() != 1200*time.Millisecond {
		t.Errorf("CallInterval = %v", cfg.Enrichment.GetCallInterval())
	}
	if cfg.Webhook.MaxBatch != 50 {
		t.Errorf("MaxBatch = %d", cfg.Webhook.MaxBatch)
	}
	if cfg.API.GetFreshnessWindow() != 5*time.Minute {
		t.Errorf("FreshnessWindow = %v", cfg.API.GetFreshnessWindow())
	}
	if cfg.API.RateLimitMax != 60 {
		t.Errorf("RateLimitMax = %d", cfg.API.RateLimitMax)
	}
	if cfg.API.PageSizeDefault != 24 || cfg.API.PageSizeMax != 100 {
		t.Errorf("page sizes = %d/%d", cfg.API.PageSizeDefault, cfg.API.PageSizeMax)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadRequiresStoreRoot(t *testing.T) {
	if _, err := Load(writeConfig(t, "api:\n  signing_secret: shh\n")); err == nil {
		t.Error("expected error for missing store.root_dir")
	}
}

func TestLoadRequiresAPISecret(t *testing.T) {
	if _, err := Load(writeConfig(t, "store:\n  root_dir: /data\n")); err == nil {
		t.Error("expected error for missing api.signing_secret")
	}
}

func TestLoadRejectsWebhookWithoutSecret(t *testing.T) {
	content := minimalConfig + `
webhook:
  endpoint: https://example.com/hook
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected error for webhook endpoint without signing secret")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	content := minimalConfig + `
sync:
  scan_interval: not-a-duration
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	content := minimalConfig + `
logging:
  level: verbose
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Error("expected error for unknown logging level")
	}
}
