package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room is a physical room guarded by a door terminal.
type Room struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"size:100;not null"`      // Display name.
	Description string `gorm:"type:text"`              // Optional description.
	Status      bool   `gorm:"not null;default:false"` // Occupied flag.
	Image       []byte // Optional picture.

	OccupiedByEmployeeID *uint64   `gorm:"index"`                                                         // Current occupant.
	OccupiedByEmployee   *Employee `gorm:"foreignKey:OccupiedByEmployeeID;constraint:OnDelete:SET NULL"` // Current occupant row.

	RoomAccess []EmployeeRoomAccess `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"` // Employee grants.
	AccessLogs []AccessLog          `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"` // Door attempts.
}

// EmployeeRoomAccess grants one employee entry to one room.
type EmployeeRoomAccess struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64 `gorm:"not null;uniqueIndex:idx_employee_room"`       // Granted employee.
	RoomID     uint64 `gorm:"not null;uniqueIndex:idx_employee_room;index"` // Granted room.
}

// AccessLog records a single door access attempt and its outcome.
type AccessLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID    uint64    `gorm:"not null;index"`         // Attempting employee.
	RoomID        uint64    `gorm:"not null;index"`         // Target room.
	AccessTime    time.Time `gorm:"not null;index"`         // Attempt timestamp.
	AccessGranted bool      `gorm:"not null;default:false"` // Decision.
	AttemptType   string    `gorm:"size:20;not null"`       // PinCode or Fingerprint.

	Details datatypes.JSON // Decision details such as the deny reason.
}
