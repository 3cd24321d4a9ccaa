package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/flowview/pkg/session"
)

// isolateConfig points the config lookup at an empty directory and clears
// every FLOWVIEW_* override.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{"ADDR", "STORE", "STATE_DIR", "SQLITE_PATH", "REDIS_ADDR", "REDIS_PASSWORD", "MONGO_URI", "SESSION_TTL", "STRICT"} {
		t.Setenv(envPrefix+key, "")
	}
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Store != session.BackendFile {
		t.Errorf("Store = %q, want %q", cfg.Store, session.BackendFile)
	}
	if cfg.TTL() != session.DefaultTTL {
		t.Errorf("TTL() = %v, want %v", cfg.TTL(), session.DefaultTTL)
	}
	if cfg.Strict {
		t.Error("Strict should default to false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := isolateConfig(t)
	dir := filepath.Join(home, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, `
addr = ":9000"
store = "SQLite"
sqlite_path = "/tmp/flowview.db"
session_ttl = "1h"
strict = true
`)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
	if cfg.Store != session.BackendSQLite {
		t.Errorf("Store = %q, want %q", cfg.Store, session.BackendSQLite)
	}
	if cfg.TTL() != time.Hour {
		t.Errorf("TTL() = %v, want 1h", cfg.TTL())
	}
	if !cfg.Strict {
		t.Error("Strict = false, want true")
	}
	if got := cfg.sessionConfig(); got.Backend != session.BackendSQLite || got.SQLitePath != "/tmp/flowview.db" {
		t.Errorf("sessionConfig() = %+v", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := isolateConfig(t)
	path := writeConfig(t, dir, `addr = ":9000"`)
	t.Setenv(envPrefix+"ADDR", ":7000")
	t.Setenv(envPrefix+"STORE", "memory")
	t.Setenv(envPrefix+"SESSION_TTL", "0")
	t.Setenv(envPrefix+"STRICT", "true")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q, want env override :7000", cfg.Addr)
	}
	if cfg.Store != session.BackendMemory {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.TTL() != 0 {
		t.Errorf("TTL() = %v, want 0", cfg.TTL())
	}
	if !cfg.Strict {
		t.Error("Strict = false, want true")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{"unknown store", `store = "etcd"`, nil, "unknown store"},
		{"redis without addr", `store = "redis"`, nil, "redis_addr"},
		{"mongo without uri", `store = "mongo"`, nil, "mongo_uri"},
		{"bad ttl", `session_ttl = "soon"`, nil, "session_ttl"},
		{"negative ttl", `session_ttl = "-1h"`, nil, "negative"},
		{"bad toml", `addr = `, nil, "load config"},
		{"bad strict env", ``, map[string]string{"STRICT": "maybe"}, "STRICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateConfig(t)
			path := writeConfig(t, dir, tt.content)
			for k, v := range tt.env {
				t.Setenv(envPrefix+k, v)
			}

			_, err := loadConfig(path)
			if err == nil {
				t.Fatal("loadConfig() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	dir := isolateConfig(t)
	if _, err := loadConfig(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("loadConfig() with a missing explicit path should fail")
	}
}

func TestLoadConfigRedis(t *testing.T) {
	isolateConfig(t)
	t.Setenv(envPrefix+"STORE", "redis")
	t.Setenv(envPrefix+"REDIS_ADDR", "localhost:6379")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	sc := cfg.sessionConfig()
	if sc.Backend != session.BackendRedis || sc.RedisAddr != "localhost:6379" {
		t.Errorf("sessionConfig() = %+v", sc)
	}
}
