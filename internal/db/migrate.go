package db

import (
	"fmt"

	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table owned by the service.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	// Parents before children so foreign keys resolve on every dialect.
	tables := []any{
		&models.Employee{},
		&models.Role{},
		&models.Permission{},
		&models.Room{},
		&models.RolePermission{},
		&models.EmployeeRole{},
		&models.EmployeeRoomAccess{},
		&models.AccessLog{},
		&models.UserToken{},
		&models.Setting{},
	}
	for _, table := range tables {
		if errMigrate := conn.AutoMigrate(table); errMigrate != nil {
			return fmt.Errorf("db: migrate %T: %w", table, errMigrate)
		}
	}
	return nil
}

// SeedPermissions inserts any of keys that are not yet present.
func SeedPermissions(conn *gorm.DB, keys []string) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	for _, key := range keys {
		permission := models.Permission{PermissionKey: key}
		if errSeed := conn.Where(models.Permission{PermissionKey: key}).FirstOrCreate(&permission).Error; errSeed != nil {
			return fmt.Errorf("db: seed permission %s: %w", key, errSeed)
		}
	}
	return nil
}
