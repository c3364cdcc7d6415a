package services

import (
	"github.com/casbin/casbin/v2"

	"github.com/you/eventhub/domain"
)

// RoutePolicy grants a role an action pattern on a route pattern.
type RoutePolicy struct {
	Role     domain.Role
	Resource string
	Action   string
}

// DefaultPolicies are the route grants every deployment starts with.
var DefaultPolicies = []RoutePolicy{
	{domain.RoleUser, "/api/me", "GET"},
	{domain.RoleUser, "/api/expenses", "(GET)|(POST)"},
	{domain.RoleUser, "/api/referrals/commission", "GET"},

	{domain.RoleStaff, "/api/me", "GET"},
	{domain.RoleStaff, "/api/expenses", "(GET)|(POST)"},
	{domain.RoleStaff, "/api/referrals/commission", "GET"},

	{domain.RoleAdmin, "/api/me", "GET"},
	{domain.RoleAdmin, "/api/expenses", "(GET)|(POST)"},
	{domain.RoleAdmin, "/api/admin/*", "(GET)|(POST)|(PATCH)"},
}

// CasbinEnforcerWrapper wraps the real Casbin enforcer to implement our interface
type CasbinEnforcerWrapper struct {
	enforcer *casbin.Enforcer
}

// NewCasbinEnforcerWrapper creates a wrapper for the real Casbin enforcer
func NewCasbinEnforcerWrapper(enforcer *casbin.Enforcer) domain.CasbinEnforcer {
	return &CasbinEnforcerWrapper{enforcer: enforcer}
}

func (w *CasbinEnforcerWrapper) AddPolicy(params ...interface{}) (bool, error) {
	return w.enforcer.AddPolicy(params...)
}

func (w *CasbinEnforcerWrapper) Enforce(rvals ...interface{}) (bool, error) {
	return w.enforcer.Enforce(rvals...)
}

func (w *CasbinEnforcerWrapper) GetPolicy() ([][]string, error) {
	return w.enforcer.GetPolicy()
}

func (w *CasbinEnforcerWrapper) SavePolicy() error {
	return w.enforcer.SavePolicy()
}

// PolicyServiceImpl implements domain.PolicyService using Casbin
type PolicyServiceImpl struct {
	enforcer domain.CasbinEnforcer
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer *casbin.Enforcer) domain.PolicyService {
	return &PolicyServiceImpl{
		enforcer: NewCasbinEnforcerWrapper(enforcer),
	}
}

// NewPolicyServiceWithEnforcer creates a new policy service with a CasbinEnforcer interface (for testing)
func NewPolicyServiceWithEnforcer(enforcer domain.CasbinEnforcer) domain.PolicyService {
	return &PolicyServiceImpl{
		enforcer: enforcer,
	}
}

// AddPolicy implements domain.PolicyService. Existing grants are left alone.
func (p *PolicyServiceImpl) AddPolicy(role domain.Role, resource, action string) error {
	added, err := p.enforcer.AddPolicy(role.CasbinSubject(), resource, action)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	return p.enforcer.SavePolicy()
}

// CheckPermission implements domain.PolicyService
func (p *PolicyServiceImpl) CheckPermission(role domain.Role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(role.CasbinSubject(), resource, action)
}

// GetPolicies implements domain.PolicyService
func (p *PolicyServiceImpl) GetPolicies() [][]string {
	policies, _ := p.enforcer.GetPolicy()
	return policies
}

// SeedPolicies installs policies, skipping those already present.
func SeedPolicies(svc domain.PolicyService, policies []RoutePolicy) error {
	for _, rp := range policies {
		if err := svc.AddPolicy(rp.Role, rp.Resource, rp.Action); err != nil {
			return err
		}
	}
	return nil
}
