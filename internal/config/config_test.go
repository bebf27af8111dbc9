package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  dsn: postgres://localhost/stock
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected default driver postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected default cache TTL 5m, got %v", cfg.Cache.TTL)
	}
	if cfg.Stock.LockTimeout != 30*time.Second {
		t.Errorf("expected default lock timeout 30s, got %v", cfg.Stock.LockTimeout)
	}
	if cfg.Stock.ReservationTTL != 15*time.Minute {
		t.Errorf("expected default reservation TTL 15m, got %v", cfg.Stock.ReservationTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfigFile(t, `
database:
  driver: mysql
  dsn: root:root@tcp(localhost:3306)/stock
cache:
  backend: redis
  ttl: 90s
stock:
  lock_timeout: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("expected mysql, got %q", cfg.Database.Driver)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != 90*time.Second {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Stock.LockTimeout != 10*time.Second {
		t.Errorf("expected 10s lock timeout, got %v", cfg.Stock.LockTimeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing dsn": `
database:
  driver: postgres
`,
		"bad driver": `
database:
  driver: sqlite
  dsn: file.db
`,
		"bad cache backend": `
database:
  dsn: postgres://localhost/stock
cache:
  backend: memcached
`,
		"kafka without brokers": `
database:
  dsn: postgres://localhost/stock
kafka:
  enabled: true
`,
	}

	for name, content := range cases {
		if _, err := Load(writeConfigFile(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
