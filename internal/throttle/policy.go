package throttle

import (
	"fmt"
	"time"

	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/isdelr/acquisitions-api/internal/verdict"
)

// Policy is the request budget for one role tier.
type Policy struct {
	Role   models.Role
	Window time.Duration
	Max    int
	Label  string
}

// RuleName scopes the counting bucket so tiers never share one.
func (p Policy) RuleName() string {
	return string(p.Role) + "-rate-limit"
}

func (p Policy) rule() verdict.Rule {
	return verdict.Rule{Name: p.RuleName(), Window: p.Window, Max: p.Max}
}

// Policies is the role to policy table consulted on every request.
type Policies struct {
	Guest Policy
	User  Policy
	Admin Policy
}

// DefaultPolicies allows 5, 10 and 20 requests per minute for guests, users
// and admins.
func DefaultPolicies() Policies {
	return NewPolicies(time.Minute, 5, 10, 20)
}

// NewPolicies builds the table from a shared window and per-tier maxima.
func NewPolicies(window time.Duration, guest, user, admin int) Policies {
	return Policies{
		Guest: Policy{Role: models.RoleGuest, Window: window, Max: guest, Label: fmt.Sprintf("Guest requests (%d per %s)", guest, window)},
		User:  Policy{Role: models.RoleUser, Window: window, Max: user, Label: fmt.Sprintf("User requests (%d per %s)", user, window)},
		Admin: Policy{Role: models.RoleAdmin, Window: window, Max: admin, Label: fmt.Sprintf("Admin requests (%d per %s)", admin, window)},
	}
}

// Validate checks every tier is usable and that more privileged roles never
// get a tighter budget.
func (p Policies) Validate() error {
	for _, pol := range []Policy{p.Guest, p.User, p.Admin} {
		if pol.Window <= 0 {
			return fmt.Errorf("throttle: %s window must be > 0", pol.Role)
		}
		if pol.Max <= 0 {
			return fmt.Errorf("throttle: %s max must be > 0", pol.Role)
		}
	}
	if p.Guest.Role != models.RoleGuest || p.User.Role != models.RoleUser || p.Admin.Role != models.RoleAdmin {
		return fmt.Errorf("throttle: policy roles do not match their tiers")
	}
	if p.User.Max < p.Guest.Max || p.Admin.Max < p.User.Max {
		return fmt.Errorf("throttle: limits must satisfy admin (%d) >= user (%d) >= guest (%d)",
			p.Admin.Max, p.User.Max, p.Guest.Max)
	}
	return nil
}

// For selects the policy for the caller; nil is a guest.
func (p Policies) For(id *models.Identity) Policy {
	if id == nil {
		return p.Guest
	}
	switch id.Role {
	case models.RoleAdmin:
		return p.Admin
	case models.RoleUser:
		return p.User
	default:
		return p.Guest
	}
}
