package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/store"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCredentials rejects a login without saying which factor failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken rejects a registration whose email is already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBlankName rejects a registration whose name is only whitespace.
	ErrBlankName = errors.New("name is required")
)

// insertAttempts bounds registration retries after a PIN collision on insert.
const insertAttempts = 3

// Service implements login, registration and logout.
type Service struct {
	credentials store.CredentialStore
	tokens      store.TokenStore
	issuer      *Issuer
	pinAttempts int
}

// NewService constructs a Service.
func NewService(credentials store.CredentialStore, tokens store.TokenStore, issuer *Issuer) *Service {
	return &Service{
		credentials: credentials,
		tokens:      tokens,
		issuer:      issuer,
		pinAttempts: security.DefaultPINAttempts,
	}
}

// SetPINAttempts overrides the PIN search budget.
func (s *Service) SetPINAttempts(n int) {
	if n > 0 {
		s.pinAttempts = n
	}
}

// Login verifies the password of the employee matching name or email and
// issues a session token.
func (s *Service) Login(ctx context.Context, name, email, password string) (string, error) {
	employee, errFind := s.credentials.EmployeeByLogin(ctx, name, email)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			security.BurnPasswordCheck(password)
			log.WithFields(log.Fields{"name": name, "email": email}).Debug("login rejected")
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("auth: login: %w", errFind)
	}
	if !security.CheckPassword(employee.PasswordHash, password) {
		log.WithField("employee_id", employee.ID).Debug("login rejected")
		return "", ErrInvalidCredentials
	}
	return s.issuer.IssueOrRenew(ctx, employee)
}

// NormalizeEmail folds an address to the form stored and compared by the service.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterInput carries the fields of a new employee.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates an employee with a fresh unique PIN and issues a session token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Employee, string, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" {
		return nil, "", ErrBlankName
	}

	taken, errExists := s.credentials.EmailExists(ctx, email)
	if errExists != nil {
		return nil, "", fmt.Errorf("auth: register: %w", errExists)
	}
	if taken {
		return nil, "", ErrEmailTaken
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return nil, "", fmt.Errorf("auth: register: hash password: %w", errHash)
	}

	var employee *models.Employee
	for attempt := 0; attempt < insertAttempts; attempt++ {
		pin, errPIN := security.GenerateUniquePIN(ctx, s.pinAttempts, s.credentials.PINExists)
		if errPIN != nil {
			return nil, "", fmt.Errorf("auth: register: %w", errPIN)
		}
		candidate := &models.Employee{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			PinCode:      pin,
		}
		errCreate := s.credentials.CreateEmployee(ctx, candidate)
		if errCreate == nil {
			employee = candidate
			break
		}
		if !errors.Is(errCreate, store.ErrDuplicate) {
			return nil, "", fmt.Errorf("auth: register: %w", errCreate)
		}
		// Lost a race: either the email or the PIN was claimed since the checks.
		if emailTaken, errCheck := s.credentials.EmailExists(ctx, email); errCheck == nil && emailTaken {
			return nil, "", ErrEmailTaken
		}
		log.WithField("attempt", attempt+1).Warn("pin collided on insert, retrying")
	}
	if employee == nil {
		return nil, "", fmt.Errorf("auth: register: %w", security.ErrPINSpaceExhausted)
	}

	token, errIssue := s.issuer.IssueOrRenew(ctx, employee)
	if errIssue != nil {
		return nil, "", errIssue
	}
	log.WithField("employee_id", employee.ID).Info("employee registered")
	return employee, token, nil
}

// Logout deletes the stored token. An unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	deleted, errDelete := s.tokens.DeleteToken(ctx, token)
	if errDelete != nil {
		return fmt.Errorf("auth: logout: %w", errDelete)
	}
	log.WithField("matched", deleted).Debug("logout")
	return nil
}

// Employee loads the employee behind an authenticated identity.
func (s *Service) Employee(ctx context.Context, id uint64) (*models.Employee, error) {
	return s.credentials.EmployeeByID(ctx, id)
}
