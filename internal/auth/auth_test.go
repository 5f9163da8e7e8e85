package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nexus-webapi/nexus/internal/db"
	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/store"
	"gorm.io/gorm"
)

var testOptions = security.TokenOptions{
	Secret:   "auth-test-secret-auth-test-secret!",
	Issuer:   "nexus",
	Audience: "nexus-clients",
	Lifetime: time.Hour,
}

func openAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newTestService(t *testing.T) (*Service, *Issuer, *gorm.DB) {
	t.Helper()
	conn := openAuthTestDB(t)
	s := store.NewGorm(conn)
	issuer := NewIssuer(s, testOptions)
	return NewService(s, s, issuer), issuer, conn
}

func createEmployee(t *testing.T, conn *gorm.DB, name, email, password, pin string) *models.Employee {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	employee := &models.Employee{Name: name, Email: email, PasswordHash: hash, PinCode: pin}
	if errCreate := conn.Create(employee).Error; errCreate != nil {
		t.Fatalf("create employee: %v", errCreate)
	}
	return employee
}

func grantPermissions(t *testing.T, conn *gorm.DB, employeeID uint64, keys ...string) {
	t.Helper()
	role := &models.Role{RoleName: fmt.Sprintf("role-%d-%d", employeeID, time.Now().UnixNano())}
	if errRole := conn.Create(role).Error; errRole != nil {
		t.Fatalf("create role: %v", errRole)
	}
	for _, key := range keys {
		permission := models.Permission{PermissionKey: key}
		if errPerm := conn.Where(models.Permission{PermissionKey: key}).FirstOrCreate(&permission).Error; errPerm != nil {
			t.Fatalf("create permission: %v", errPerm)
		}
		if errBind := conn.Create(&models.RolePermission{RoleID: role.ID, PermissionID: permission.ID}).Error; errBind != nil {
			t.Fatalf("bind permission: %v", errBind)
		}
	}
	if errAssign := conn.Create(&models.EmployeeRole{EmployeeID: employeeID, RoleID: role.ID}).Error; errAssign != nil {
		t.Fatalf("assign role: %v", errAssign)
	}
}

func countTokens(t *testing.T, conn *gorm.DB, employeeID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.UserToken{}).Where("employee_id = ?", employeeID).Count(&count).Error; errCount != nil {
		t.Fatalf("count tokens: %v", errCount)
	}
	return count
}

func TestIssueEmbedsDistinctPermissionsAndPersistsExpiry(t *testing.T) {
	_, issuer, conn := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetClock(func() time.Time { return now })

	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")
	grantPermissions(t, conn, employee.ID, "ViewRooms", "AdminAccess")
	grantPermissions(t, conn, employee.ID, "ViewRooms")

	token, errIssue := issuer.IssueOrRenew(ctx, employee)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	claims, errParse := security.ParseToken(testOptions, token, now)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != "AdminAccess" || claims.Permissions[1] != "ViewRooms" {
		t.Fatalf("expected [AdminAccess ViewRooms], got %v", claims.Permissions)
	}
	if id, ok := claims.EmployeeID(); !ok || id != employee.ID || claims.Name != "ada" {
		t.Fatalf("unexpected identity claims %+v", claims)
	}

	var row models.UserToken
	if errFind := conn.Where("token = ?", token).First(&row).Error; errFind != nil {
		t.Fatalf("find token row: %v", errFind)
	}
	if !row.Expiration.Equal(claims.ExpiresAt.Time) || !row.Expiration.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected row expiry %s to match claim %s", row.Expiration, claims.ExpiresAt.Time)
	}
}

func TestIssueWithoutRolesHasNoPermissionClaims(t *testing.T) {
	svc, issuer, _ := newTestService(t)
	ctx := context.Background()

	employee, token, errRegister := svc.Register(ctx, RegisterInput{Name: "bob", Email: "bob@example.com", Password: "hunter22"})
	if errRegister != nil {
		t.Fatalf("register: %v", errRegister)
	}
	if !security.IsValidPIN(employee.PinCode) {
		t.Fatalf("expected generated pin, got %q", employee.PinCode)
	}
	claims, errParse := security.ParseToken(issuer.Options(), token, time.Now().UTC())
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if len(claims.Permissions) != 0 {
		t.Fatalf("expected zero permission claims, got %v", claims.Permissions)
	}
}

func TestRenewReturnsSameTokenAndExtendsExpiry(t *testing.T) {
	_, issuer, conn := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetClock(func() time.Time { return now })
	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	first, errFirst := issuer.IssueOrRenew(ctx, employee)
	if errFirst != nil {
		t.Fatalf("issue: %v", errFirst)
	}

	later := now.Add(20 * time.Minute)
	issuer.SetClock(func() time.Time { return later })
	second, errSecond := issuer.IssueOrRenew(ctx, employee)
	if errSecond != nil {
		t.Fatalf("renew: %v", errSecond)
	}
	if first != second {
		t.Fatalf("expected the same token string on renewal")
	}
	if n := countTokens(t, conn, employee.ID); n != 1 {
		t.Fatalf("expected one token row, got %d", n)
	}
	var row models.UserToken
	if errFind := conn.Where("token = ?", first).First(&row).Error; errFind != nil {
		t.Fatalf("find token row: %v", errFind)
	}
	if !row.Expiration.Equal(later.Add(time.Hour)) {
		t.Fatalf("expected expiration %s, got %s", later.Add(time.Hour), row.Expiration)
	}
}

func TestIssueAfterExpiryMintsNewToken(t *testing.T) {
	_, issuer, conn := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetClock(func() time.Time { return now })
	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	first, errFirst := issuer.IssueOrRenew(ctx, employee)
	if errFirst != nil {
		t.Fatalf("issue: %v", errFirst)
	}
	// The boundary is exclusive: a token expiring exactly now is not reused.
	issuer.SetClock(func() time.Time { return now.Add(time.Hour) })
	second, errSecond := issuer.IssueOrRenew(ctx, employee)
	if errSecond != nil {
		t.Fatalf("issue: %v", errSecond)
	}
	if first == second {
		t.Fatalf("expected a new token after expiry")
	}
	if n := countTokens(t, conn, employee.ID); n != 2 {
		t.Fatalf("expected two token rows, got %d", n)
	}
}

func TestLoginAfterSignedLifetimeReturnsVerifiableToken(t *testing.T) {
	_, issuer, conn := newTestService(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.SetClock(func() time.Time { return start })
	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	first, errFirst := issuer.IssueOrRenew(ctx, employee)
	if errFirst != nil {
		t.Fatalf("issue: %v", errFirst)
	}
	// Renewal keeps the row alive past the signed exp of the first token.
	issuer.SetClock(func() time.Time { return start.Add(50 * time.Minute) })
	renewed, errRenew := issuer.IssueOrRenew(ctx, employee)
	if errRenew != nil {
		t.Fatalf("renew: %v", errRenew)
	}
	if renewed != first {
		t.Fatalf("expected the same token while its signature is still valid")
	}

	later := start.Add(70 * time.Minute)
	issuer.SetClock(func() time.Time { return later })
	third, errThird := issuer.IssueOrRenew(ctx, employee)
	if errThird != nil {
		t.Fatalf("issue: %v", errThird)
	}
	if third == first {
		t.Fatalf("expected a new token once the signed exp has passed")
	}
	if _, errParse := security.ParseToken(testOptions, third, later); errParse != nil {
		t.Fatalf("returned token does not verify: %v", errParse)
	}
	if n := countTokens(t, conn, employee.ID); n != 1 {
		t.Fatalf("expected the stale row to be replaced, got %d rows", n)
	}
}

func TestConcurrentIssueConvergesOnOneToken(t *testing.T) {
	_, issuer, conn := newTestService(t)
	ctx := context.Background()
	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	const workers = 8
	tokens := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = issuer.IssueOrRenew(ctx, employee)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if tokens[i] != tokens[0] {
			t.Fatalf("worker %d got a different token", i)
		}
	}
	if n := countTokens(t, conn, employee.ID); n != 1 {
		t.Fatalf("expected one token row, got %d", n)
	}
}

func TestIssueUnknownEmployee(t *testing.T) {
	_, issuer, _ := newTestService(t)
	_, errIssue := issuer.IssueOrRenew(context.Background(), &models.Employee{ID: 999, Name: "ghost"})
	if !errors.Is(errIssue, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errIssue)
	}
}

func TestLogin(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	tests := []struct {
		name     string
		login    string
		email    string
		password string
		wantErr  error
	}{
		{name: "by name", login: "ada", password: "secret1"},
		{name: "by email", email: "ada@example.com", password: "secret1"},
		{name: "wrong password", login: "ada", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", login: "nobody", password: "secret1", wantErr: ErrInvalidCredentials},
		{name: "empty identifier", password: "secret1", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errLogin := svc.Login(ctx, tt.login, tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(errLogin, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, errLogin)
				}
				return
			}
			if errLogin != nil || token == "" {
				t.Fatalf("expected token, got %q err=%v", token, errLogin)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	_, _, errRegister := svc.Register(ctx, RegisterInput{Name: "ada2", Email: "ada@example.com", Password: "secret2"})
	if !errors.Is(errRegister, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", errRegister)
	}
	var count int64
	conn.Model(&models.Employee{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected no new employee, got %d rows", count)
	}
}

func TestRegisterEmailIgnoresCase(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	_, _, errRegister := svc.Register(ctx, RegisterInput{Name: "ada2", Email: " Ada@Example.COM ", Password: "secret2"})
	if !errors.Is(errRegister, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", errRegister)
	}

	employee, _, errNew := svc.Register(ctx, RegisterInput{Name: "bob", Email: "Bob@Example.com", Password: "secret2"})
	if errNew != nil {
		t.Fatalf("register: %v", errNew)
	}
	if employee.Email != "bob@example.com" {
		t.Fatalf("expected stored email to be lowercased, got %q", employee.Email)
	}
	if _, errLogin := svc.Login(ctx, "", "BOB@example.com", "secret2"); errLogin != nil {
		t.Fatalf("login by mixed-case email: %v", errLogin)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	svc, _, conn := newTestService(t)

	_, _, errRegister := svc.Register(context.Background(), RegisterInput{Name: "   ", Email: "ada@example.com", Password: "secret1"})
	if !errors.Is(errRegister, ErrBlankName) {
		t.Fatalf("expected ErrBlankName, got %v", errRegister)
	}
	var count int64
	conn.Model(&models.Employee{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no employee row, got %d", count)
	}
}

func TestRegisterFailsWhenPINSpaceIsExhausted(t *testing.T) {
	ctx := context.Background()
	conn := openAuthTestDB(t)
	base := store.NewGorm(conn)
	svc := NewService(fullPINStore{Gorm: base}, base, NewIssuer(base, testOptions))
	svc.SetPINAttempts(3)

	_, _, errRegister := svc.Register(ctx, RegisterInput{Name: "ada", Email: "ada@example.com", Password: "secret1"})
	if !errors.Is(errRegister, security.ErrPINSpaceExhausted) {
		t.Fatalf("expected ErrPINSpaceExhausted, got %v", errRegister)
	}
}

type fullPINStore struct {
	*store.Gorm
}

func (fullPINStore) PINExists(context.Context, string) (bool, error) {
	return true, nil
}

func TestLogoutDeletesTokenAndIgnoresUnknown(t *testing.T) {
	svc, issuer, conn := newTestService(t)
	ctx := context.Background()
	employee := createEmployee(t, conn, "ada", "ada@example.com", "secret1", "1111")

	token, errIssue := issuer.IssueOrRenew(ctx, employee)
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if errLogout := svc.Logout(ctx, token); errLogout != nil {
		t.Fatalf("logout: %v", errLogout)
	}
	if n := countTokens(t, conn, employee.ID); n != 0 {
		t.Fatalf("expected token removed, got %d", n)
	}
	if errLogout := svc.Logout(ctx, "never-issued"); errLogout != nil {
		t.Fatalf("expected unknown token logout to succeed, got %v", errLogout)
	}
}
