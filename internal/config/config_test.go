package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  listenAddr: ":9000"
  postgresDsn: "host=db user=postgres"
  redisAddr: "redis:6379"
view:
  maxPageSize: 50
  cursorSecret: "s3cret"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write fixture failed: %v", err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if conf.Server.ListenAddr != ":9000" {
		t.Fatalf("expected listen addr got %s", conf.Server.ListenAddr)
	}
	if conf.View.MaxPageSize != 50 {
		t.Fatalf("expected max page size 50 got %d", conf.View.MaxPageSize)
	}
	// unset sizes fall back to defaults
	if conf.View.DefaultPageSize != 10 {
		t.Fatalf("expected default page size 10 got %d", conf.View.DefaultPageSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
