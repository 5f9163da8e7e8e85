package models

import (
	"encoding/json"
	"time"
)

// Setting stores a key/value configuration entry in the database.
type Setting struct {
	Key       string          `gorm:"size:255;primaryKey"`     // Configuration key.
	Value     json.RawMessage // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
