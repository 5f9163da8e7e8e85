package security

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// TokenOptions carries the signing and validation parameters for session tokens.
type TokenOptions struct {
	Secret   string
	Issuer   string
	Audience string
	Lifetime time.Duration
}

// EmployeeClaims defines JWT claims for employees.
//
// The subject carries the numeric employee ID. Permission keys are embedded
// as a "permission" claim, serialized as an array.
type EmployeeClaims struct {
	Name        string           `json:"name"`
	Permissions jwt.ClaimStrings `json:"permission,omitempty"`
	jwt.RegisteredClaims
}

// EmployeeID parses the numeric employee ID from the subject claim.
func (c *EmployeeClaims) EmployeeID() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		return 0, false
	}
	id, errParse := strconv.ParseUint(subject, 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// GenerateToken signs an employee JWT valid from now until now+opts.Lifetime.
// It returns the signed string and the embedded expiry.
func GenerateToken(opts TokenOptions, employeeID uint64, name string, permissions []string, now time.Time) (string, time.Time, error) {
	now = now.UTC()
	expiresAt := now.Add(opts.Lifetime)
	claims := EmployeeClaims{
		Name:        name,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(employeeID, 10),
			Issuer:    opts.Issuer,
			Audience:  jwt.ClaimStrings{opts.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(opts.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseToken validates signature, issuer, audience, not-before and expiry,
// and returns the embedded claims.
func ParseToken(opts TokenOptions, tokenString string, now time.Time) (*EmployeeClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(opts.Issuer),
		jwt.WithAudience(opts.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	token, err := parser.ParseWithClaims(tokenString, &EmployeeClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(opts.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*EmployeeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
