package auth

import (
	"fmt"

	"github.com/rongwang/marketplace-server/internal/models"
)

// ErrSelfTarget is returned when an administrator targets their own account
// with a destructive action.
var ErrSelfTarget = fmt.Errorf("%w: cannot target your own account", models.ErrForbidden)

// Require fails with models.ErrForbidden unless the principal holds exactly
// the required level.
func Require(p models.Principal, level models.Level) error {
	if p.Level != level {
		return fmt.Errorf("%w: %s privilege required", models.ErrForbidden, level)
	}
	return nil
}

// RequireNotSelf fails when the principal is the target account.
func RequireNotSelf(p models.Principal, targetAccountID int64) error {
	if p.AccountID == targetAccountID {
		return ErrSelfTarget
	}
	return nil
}
