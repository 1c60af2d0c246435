// Package access holds the role and ownership rules for the user routes.
// Every check is a pure function of the caller and the target; nothing here
// performs I/O.
package access

import (
	"fmt"

	"github.com/isdelr/acquisitions-api/internal/common"
	"github.com/isdelr/acquisitions-api/internal/models"
)

// Change describes which fields a mutation wants to touch.
type Change struct {
	SetsRole bool
}

// CheckRoles allows authenticated callers whose role is in allowed.
func CheckRoles(id *models.Identity, allowed ...models.Role) error {
	if id == nil {
		return common.ErrUnauthorized
	}
	for _, role := range allowed {
		if id.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q not permitted", common.ErrForbidden, id.Role)
}

// CheckOwnership allows the target's owner and admins.
func CheckOwnership(id *models.Identity, targetID int64) error {
	if id == nil {
		return common.ErrUnauthorized
	}
	if id.Role == models.RoleAdmin || id.UserID == targetID {
		return nil
	}
	return fmt.Errorf("%w: cannot act on other users", common.ErrForbidden)
}

// CheckUpdate applies the ownership rule and blocks role changes by
// non-admins, including on their own record.
func CheckUpdate(id *models.Identity, targetID int64, change Change) error {
	if err := CheckOwnership(id, targetID); err != nil {
		return err
	}
	if change.SetsRole && id.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only admin can change role", common.ErrForbidden)
	}
	return nil
}

// CheckBulkDelete allows admins only. Guests get Forbidden as well.
func CheckBulkDelete(id *models.Identity) error {
	if id == nil || id.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only admin can delete all users", common.ErrForbidden)
	}
	return nil
}
