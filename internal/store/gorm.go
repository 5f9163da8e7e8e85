package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ CredentialStore = (*Gorm)(nil)
	_ GraphStore      = (*Gorm)(nil)
	_ TokenStore      = (*Gorm)(nil)
	_ AccessStore     = (*Gorm)(nil)
	_ TokenTx         = (*Gorm)(nil)
)

// Gorm implements every store interface on a gorm connection.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps a gorm connection.
func NewGorm(conn *gorm.DB) *Gorm {
	return &Gorm{db: conn}
}

// DB exposes the underlying connection for administrative CRUD.
func (s *Gorm) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// EmployeeByID loads one employee.
func (s *Gorm) EmployeeByID(ctx context.Context, id uint64) (*models.Employee, error) {
	var employee models.Employee
	if errFind := s.db.WithContext(ctx).First(&employee, id).Error; errFind != nil {
		return nil, translate(errFind)
	}
	return &employee, nil
}

// EmployeeByLogin returns the lowest-id employee whose name or email matches.
func (s *Gorm) EmployeeByLogin(ctx context.Context, name, email string) (*models.Employee, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" && email == "" {
		return nil, ErrNotFound
	}

	q := s.db.WithContext(ctx).Model(&models.Employee{})
	switch {
	case name != "" && email != "":
		q = q.Where("name = ? OR LOWER(email) = ?", name, email)
	case name != "":
		q = q.Where("name = ?", name)
	default:
		q = q.Where("LOWER(email) = ?", email)
	}

	var employee models.Employee
	if errFind := q.Order("id ASC").First(&employee).Error; errFind != nil {
		return nil, translate(errFind)
	}
	return &employee, nil
}

// EmailExists reports whether any employee uses email, ignoring case.
func (s *Gorm) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Employee{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// PINExists reports whether any employee uses pin.
func (s *Gorm) PINExists(ctx context.Context, pin string) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Employee{}).
		Where("pin_code = ?", pin).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// CreateEmployee inserts a new employee row.
func (s *Gorm) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	return translate(s.db.WithContext(ctx).Create(employee).Error)
}

func (s *Gorm) permissionQuery(ctx context.Context, employeeID uint64) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN employee_roles ON employee_roles.role_id = role_permissions.role_id").
		Where("employee_roles.employee_id = ?", employeeID)
}

// PermissionKeys returns the distinct permission keys granted through roles.
func (s *Gorm) PermissionKeys(ctx context.Context, employeeID uint64) ([]string, error) {
	keys := make([]string, 0)
	if errFind := s.permissionQuery(ctx, employeeID).
		Distinct("permissions.permission_key").
		Order("permissions.permission_key ASC").
		Pluck("permissions.permission_key", &keys).Error; errFind != nil {
		return nil, errFind
	}
	return keys, nil
}

// HasPermission reports whether key is reachable from the employee's roles.
func (s *Gorm) HasPermission(ctx context.Context, employeeID uint64, key string) (bool, error) {
	var count int64
	if errCount := s.permissionQuery(ctx, employeeID).
		Where("permissions.permission_key = ?", key).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// LatestActiveToken returns the token expiring last, provided it is still active.
func (s *Gorm) LatestActiveToken(ctx context.Context, employeeID uint64, now time.Time) (*models.UserToken, error) {
	var token models.UserToken
	errFind := s.db.WithContext(ctx).
		Where("employee_id = ? AND expiration > ?", employeeID, now.UTC()).
		Order("expiration DESC").
		Order("id DESC").
		First(&token).Error
	if errFind != nil {
		return nil, translate(errFind)
	}
	return &token, nil
}

// ExtendToken moves a token's expiration.
func (s *Gorm) ExtendToken(ctx context.Context, id uint64, expiration time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.UserToken{}).
		Where("id = ?", id).
		Update("expiration", expiration.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateToken inserts a session token row.
func (s *Gorm) CreateToken(ctx context.Context, token *models.UserToken) error {
	token.Expiration = token.Expiration.UTC()
	return translate(s.db.WithContext(ctx).Create(token).Error)
}

// DeleteToken removes the row holding token.
func (s *Gorm) DeleteToken(ctx context.Context, token string) (bool, error) {
	res := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.UserToken{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired removes every token with expiration at or before now in one statement.
func (s *Gorm) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expiration <= ?", now.UTC()).Delete(&models.UserToken{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// WithinEmployeeLock locks the employee row and runs fn on a transaction-bound store.
//
// Postgres and MySQL take SELECT ... FOR UPDATE. SQLite has no row locks, so a
// no-op UPDATE acquires the database write lock up front instead.
func (s *Gorm) WithinEmployeeLock(ctx context.Context, employeeID uint64, fn func(tx TokenTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if db.SupportsRowLocking(tx) {
			var employee models.Employee
			errLock := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				First(&employee, employeeID).Error
			if errLock != nil {
				return translate(errLock)
			}
		} else {
			res := tx.Exec("UPDATE employees SET id = id WHERE id = ?", employeeID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotFound
			}
		}
		return fn(&Gorm{db: tx})
	})
}

// RoomExists reports whether the room row exists.
func (s *Gorm) RoomExists(ctx context.Context, roomID uint64) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// HasRoomAccess reports whether the employee holds a grant for the room.
func (s *Gorm) HasRoomAccess(ctx context.Context, employeeID, roomID uint64) (bool, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.EmployeeRoomAccess{}).
		Where("employee_id = ? AND room_id = ?", employeeID, roomID).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// AppendAccessLog inserts an access log entry.
func (s *Gorm) AppendAccessLog(ctx context.Context, entry *models.AccessLog) error {
	if entry.AccessTime.IsZero() {
		entry.AccessTime = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}
