package models

// Role groups permissions under a unique name.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RoleName    string `gorm:"size:50;not null;uniqueIndex"` // Unique role name.
	Description string `gorm:"type:text"`                    // Optional description.

	RolePermissions []RolePermission `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"` // Permission bindings.
	EmployeeRoles   []EmployeeRole   `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"` // Employee bindings.
}

// Permission is an atomic capability addressed by its key.
type Permission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PermissionKey string `gorm:"size:50;not null;uniqueIndex"` // Policy-facing key, e.g. "ViewRooms".
	Description   string `gorm:"type:text"`                    // Optional description.

	RolePermissions []RolePermission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"` // Role bindings.
}

// RolePermission binds one role to one permission.
type RolePermission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RoleID       uint64 `gorm:"not null;uniqueIndex:idx_role_permission"`       // Bound role.
	PermissionID uint64 `gorm:"not null;uniqueIndex:idx_role_permission;index"` // Bound permission.
}

// EmployeeRole binds one employee to one role.
type EmployeeRole struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64 `gorm:"not null;uniqueIndex:idx_employee_role"`       // Bound employee.
	RoleID     uint64 `gorm:"not null;uniqueIndex:idx_employee_role;index"` // Bound role.
}
