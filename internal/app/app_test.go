package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-webapi/nexus/internal/authz"
	"github.com/nexus-webapi/nexus/internal/config"
	"github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
)

func writeTestConfig(t *testing.T, body string) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return config.AppConfig{ConfigPath: path, EnvFile: filepath.Join(dir, "missing.env")}
}

func TestMigrateSeedsPermissionKeys(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "nexus.db")
	app := writeTestConfig(t, fmt.Sprintf("database:\n  dsn: file:%s\n", dbPath))

	if errMigrate := Migrate(context.Background(), app); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(context.Background(), app); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}

	conn, errOpen := db.Open("file:" + dbPath)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	defer closeDB(conn)
	var keys []string
	if errPluck := conn.Model(&models.Permission{}).Order("permission_key ASC").Pluck("permission_key", &keys).Error; errPluck != nil {
		t.Fatalf("pluck: %v", errPluck)
	}
	want := permissionKeys(authz.DefaultPolicies())
	slices.Sort(want)
	if !slices.Equal(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	app := writeTestConfig(t, "log:\n  level: info\n")
	if errMigrate := Migrate(context.Background(), app); errMigrate == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nexus.db")
	app := writeTestConfig(t, fmt.Sprintf(`server:
  addr: 127.0.0.1:0
  mode: test
  shutdown_timeout: 2s
database:
  dsn: file:%s
jwt:
  secret: run-server-test-secret-0123456789abcdef
sweeper:
  interval: 1h
`, dbPath))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunServer(ctx, app) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	select {
	case errRun := <-errCh:
		if errRun != nil {
			t.Fatalf("run server: %v", errRun)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestRunServerRejectsInvalidConfig(t *testing.T) {
	app := writeTestConfig(t, "database:\n  dsn: file::memory:\njwt:\n  secret: short\n")
	if errRun := RunServer(context.Background(), app); errRun == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPermissionKeysDeduplicates(t *testing.T) {
	keys := permissionKeys([]authz.Policy{authz.ViewRooms, authz.ViewRooms, {Name: "empty"}, authz.AdminAccess})
	if !slices.Equal(keys, []string{authz.KeyViewRooms, authz.KeyAdminAccess}) {
		t.Fatalf("keys = %v", keys)
	}
}

func TestGinMode(t *testing.T) {
	cases := map[string]string{"": gin.ReleaseMode, "DEBUG": gin.DebugMode, "test": gin.TestMode, "bogus": gin.ReleaseMode}
	for in, want := range cases {
		if got := ginMode(in); got != want {
			t.Fatalf("ginMode(%q) = %q, want %q", in, got, want)
		}
	}
}
