// Package store defines the persistence operations used by the token issuer,
// the authorization gate, the sweeper and the door endpoints.
//
// A single gorm-backed implementation serves postgres, mysql and sqlite.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nexus-webapi/nexus/internal/models"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("store: duplicate")
)

// CredentialStore reads and creates employee credential records.
type CredentialStore interface {
	EmployeeByID(ctx context.Context, id uint64) (*models.Employee, error)
	// EmployeeByLogin matches on name or email; empty values never match.
	EmployeeByLogin(ctx context.Context, name, email string) (*models.Employee, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PINExists(ctx context.Context, pin string) (bool, error)
	CreateEmployee(ctx context.Context, employee *models.Employee) error
}

// GraphStore resolves the employee -> role -> permission graph.
type GraphStore interface {
	// PermissionKeys returns the distinct keys reachable from the employee, sorted.
	PermissionKeys(ctx context.Context, employeeID uint64) ([]string, error)
	HasPermission(ctx context.Context, employeeID uint64, key string) (bool, error)
}

// TokenStore persists issued session tokens.
type TokenStore interface {
	// LatestActiveToken returns the latest-expiring token with expiration strictly after now.
	LatestActiveToken(ctx context.Context, employeeID uint64, now time.Time) (*models.UserToken, error)
	ExtendToken(ctx context.Context, id uint64, expiration time.Time) error
	CreateToken(ctx context.Context, token *models.UserToken) error
	// DeleteToken reports whether a row matched.
	DeleteToken(ctx context.Context, token string) (bool, error)
	// DeleteExpired removes every token with expiration at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// WithinEmployeeLock runs fn in a transaction that serializes token
	// writers for the employee. It returns ErrNotFound for unknown employees.
	WithinEmployeeLock(ctx context.Context, employeeID uint64, fn func(tx TokenTx) error) error
}

// TokenTx is the store view available while an employee lock is held.
type TokenTx interface {
	TokenStore
	GraphStore
}

// AccessStore backs the door access-attempt endpoint.
type AccessStore interface {
	RoomExists(ctx context.Context, roomID uint64) (bool, error)
	HasRoomAccess(ctx context.Context, employeeID, roomID uint64) (bool, error)
	AppendAccessLog(ctx context.Context, entry *models.AccessLog) error
}
