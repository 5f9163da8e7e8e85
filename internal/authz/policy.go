package authz

import (
	"context"
	"fmt"

	"github.com/nexus-webapi/nexus/internal/store"
	log "github.com/sirupsen/logrus"
)

// PolicyKind selects how a policy is evaluated.
type PolicyKind int

const (
	// Live re-queries the role/permission graph on every check.
	Live PolicyKind = iota
	// ClaimEmbedded trusts the permission claims carried by the token.
	ClaimEmbedded
)

func (k PolicyKind) String() string {
	switch k {
	case Live:
		return "live"
	case ClaimEmbedded:
		return "claim"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// Policy names a required permission key and how to check it.
type Policy struct {
	Name string
	Kind PolicyKind
	Key  string
}

// Permission keys used by the built-in policies.
const (
	KeyAdminAccess     = "AdminAccess"
	KeyViewRooms       = "ViewRooms"
	KeyManageRooms     = "ManageRooms"
	KeyManageEmployees = "ManageEmployees"
	KeyManageRoles     = "ManageRoles"
	KeyViewAccessLogs  = "ViewAccessLogs"
)

// Built-in policies.
var (
	AdminAccess     = Policy{Name: "AdminAccess", Kind: ClaimEmbedded, Key: KeyAdminAccess}
	ViewRooms       = Policy{Name: "ViewRooms", Kind: Live, Key: KeyViewRooms}
	ManageRooms     = Policy{Name: "ManageRooms", Kind: Live, Key: KeyManageRooms}
	ManageEmployees = Policy{Name: "ManageEmployees", Kind: Live, Key: KeyManageEmployees}
	ManageRoles     = Policy{Name: "ManageRoles", Kind: Live, Key: KeyManageRoles}
	ViewAccessLogs  = Policy{Name: "ViewAccessLogs", Kind: Live, Key: KeyViewAccessLogs}
)

// DefaultPolicies lists the policies registered at startup.
func DefaultPolicies() []Policy {
	return []Policy{AdminAccess, ViewRooms, ManageRooms, ManageEmployees, ManageRoles, ViewAccessLogs}
}

// Authorizer evaluates policies against identities.
type Authorizer struct {
	graph    store.GraphStore
	policies map[string]Policy
}

// NewAuthorizer constructs an Authorizer with the given policies registered.
func NewAuthorizer(graph store.GraphStore, policies ...Policy) *Authorizer {
	a := &Authorizer{graph: graph, policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		a.policies[p.Name] = p
	}
	return a
}

// Policy looks up a registered policy by name.
func (a *Authorizer) Policy(name string) (Policy, bool) {
	p, ok := a.policies[name]
	return p, ok
}

// Authorize reports whether identity satisfies policy. Anything not
// explicitly granted is denied. A store failure during a live check is
// returned as an error, never as a grant.
func (a *Authorizer) Authorize(ctx context.Context, identity *Identity, policy Policy) (bool, error) {
	if identity == nil || policy.Key == "" {
		return false, nil
	}

	switch policy.Kind {
	case ClaimEmbedded:
		return identity.HasClaim(policy.Key), nil
	case Live:
		employeeID, ok := identity.EmployeeID()
		if !ok {
			log.WithField("policy", policy.Name).Debug("authorization denied: subject is not an employee id")
			return false, nil
		}
		granted, errCheck := a.graph.HasPermission(ctx, employeeID, policy.Key)
		if errCheck != nil {
			return false, fmt.Errorf("authz: %s: %w", policy.Name, errCheck)
		}
		return granted, nil
	default:
		return false, nil
	}
}
