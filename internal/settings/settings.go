// Package settings keeps an in-memory snapshot of the settings table.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
)

type snapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

func init() {
	current.Store(&snapshot{values: map[string]json.RawMessage{}})
}

// Replace swaps the snapshot for a copy of values.
func Replace(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		next[key] = append(json.RawMessage(nil), v...)
	}
	current.Store(&snapshot{updatedAt: updatedAt.UTC(), values: next})
}

// UpdatedAt returns the newest row timestamp seen by the last refresh.
func UpdatedAt() time.Time {
	return current.Load().updatedAt
}

// Value returns a copy of the raw JSON stored under key.
func Value(key string) (json.RawMessage, bool) {
	raw, ok := current.Load().values[strings.TrimSpace(key)]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

// Int decodes key as an integer. Both JSON numbers and numeric strings are accepted.
func Int(key string) (int, bool) {
	raw, ok := Value(key)
	if !ok || len(raw) == 0 {
		return 0, false
	}
	var n int
	if errNum := json.Unmarshal(raw, &n); errNum == nil {
		return n, true
	}
	var s string
	if errStr := json.Unmarshal(raw, &s); errStr != nil {
		return 0, false
	}
	n, errParse := strconv.Atoi(strings.TrimSpace(s))
	if errParse != nil {
		return 0, false
	}
	return n, true
}

// Refresh reloads every row of the settings table into the snapshot.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	var newest time.Time
	for _, row := range rows {
		values[row.Key] = row.Value
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}
	Replace(newest, values)
	return nil
}

// Put upserts a setting row. Callers refresh the snapshot afterwards.
func Put(ctx context.Context, db *gorm.DB, key string, value any) error {
	raw, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return errMarshal
	}
	row := models.Setting{Key: strings.TrimSpace(key), Value: raw}
	return db.WithContext(ctx).Save(&row).Error
}
