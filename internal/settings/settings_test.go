package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nexus-webapi/nexus/internal/db"
)

func TestIntAcceptsNumbersAndStrings(t *testing.T) {
	t.Cleanup(func() { Replace(time.Time{}, nil) })
	Replace(time.Now(), map[string]json.RawMessage{
		"number": json.RawMessage(`120`),
		"string": json.RawMessage(`" 45 "`),
		"bad":    json.RawMessage(`"soon"`),
		" ":      json.RawMessage(`1`),
	})

	if n, ok := Int("number"); !ok || n != 120 {
		t.Fatalf("expected 120, got %d ok=%v", n, ok)
	}
	if n, ok := Int("string"); !ok || n != 45 {
		t.Fatalf("expected 45, got %d ok=%v", n, ok)
	}
	if _, ok := Int("bad"); ok {
		t.Fatalf("expected non-numeric value to be rejected")
	}
	if _, ok := Int("missing"); ok {
		t.Fatalf("expected missing key to be rejected")
	}
}

func TestValueReturnsCopy(t *testing.T) {
	t.Cleanup(func() { Replace(time.Time{}, nil) })
	Replace(time.Now(), map[string]json.RawMessage{"k": json.RawMessage(`"v"`)})

	raw, ok := Value("k")
	if !ok {
		t.Fatalf("expected value")
	}
	raw[1] = 'x'
	again, _ := Value("k")
	if string(again) != `"v"` {
		t.Fatalf("expected snapshot to be unaffected, got %s", again)
	}
}

func TestRefreshLoadsRows(t *testing.T) {
	t.Cleanup(func() { Replace(time.Time{}, nil) })
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	ctx := context.Background()

	if errPut := Put(ctx, conn, TokenSweepIntervalSecondsKey, 90); errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if errRefresh := Refresh(ctx, conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if n, ok := Int(TokenSweepIntervalSecondsKey); !ok || n != 90 {
		t.Fatalf("expected 90, got %d ok=%v", n, ok)
	}
	if UpdatedAt().IsZero() {
		t.Fatalf("expected updated timestamp")
	}

	if errPut := Put(ctx, conn, TokenSweepIntervalSecondsKey, "30"); errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if errRefresh := Refresh(ctx, conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	if n, ok := Int(TokenSweepIntervalSecondsKey); !ok || n != 30 {
		t.Fatalf("expected 30, got %d ok=%v", n, ok)
	}
}
