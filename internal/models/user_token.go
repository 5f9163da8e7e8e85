package models

import "time"

// UserToken stores an issued session token and its absolute expiry.
type UserToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64    `gorm:"not null;index"`                 // Owning employee.
	Token      string    `gorm:"size:1024;not null;uniqueIndex"` // Signed token string.
	Expiration time.Time `gorm:"not null;index"`                 // Absolute expiry, extended on renewal.
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`        // Issuance timestamp.
}
