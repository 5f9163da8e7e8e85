package models

import "time"

// Employee is an identity record with its login and door credentials.
type Employee struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name         string `gorm:"size:100;not null"`                      // Display name, also accepted as login.
	Email        string `gorm:"size:100;not null;uniqueIndex:uq_email"` // Unique email address.
	PasswordHash string `gorm:"size:256;not null"`                      // bcrypt hash, never serialized.

	PinCode         string `gorm:"size:4;not null;uniqueIndex:uq_pin_code"` // Unique 4-digit door PIN.
	FingerprintData []byte // Enrolled fingerprint template.

	Roles      []EmployeeRole       `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"` // Role assignments.
	RoomAccess []EmployeeRoomAccess `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"` // Room grants.
	AccessLogs []AccessLog          `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"` // Door attempts.
	UserTokens []UserToken          `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"` // Issued session tokens.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
