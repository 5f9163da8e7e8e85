// Package authz decides whether an authenticated identity satisfies a named policy.
package authz

import (
	"slices"

	"github.com/nexus-webapi/nexus/internal/security"
)

// ContextKey is the request-context key under which the authentication
// middleware stores the *Identity.
const ContextKey = "nexus.identity"

// Identity is the authenticated principal attached to a request.
type Identity struct {
	Subject     string   // Raw subject claim.
	Name        string   // Display name claim.
	Permissions []string // Permission claims as of issuance or last renewal.
	Token       string   // Bearer token the identity was read from.
}

// IdentityFromClaims builds an Identity from validated token claims.
func IdentityFromClaims(claims *security.EmployeeClaims, token string) *Identity {
	if claims == nil {
		return nil
	}
	return &Identity{
		Subject:     claims.Subject,
		Name:        claims.Name,
		Permissions: append([]string(nil), claims.Permissions...),
		Token:       token,
	}
}

// EmployeeID parses the numeric employee id from the subject claim.
func (i *Identity) EmployeeID() (uint64, bool) {
	if i == nil {
		return 0, false
	}
	claims := security.EmployeeClaims{}
	claims.Subject = i.Subject
	return claims.EmployeeID()
}

// HasClaim reports whether the embedded permission claims contain value.
func (i *Identity) HasClaim(value string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Permissions, value)
}
