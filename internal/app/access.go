package app

import (
	"fmt"

	"onlinelibrary/pkg/domain"
)

// CanAccessUser reports whether the caller may act on the target user id:
// the caller is the target, or holds ROLE_ADMIN or ROLE_USER. The role
// clause mirrors the original access rule verbatim, which makes it pass for
// essentially every authenticated non-super-admin caller.
func CanAccessUser(caller domain.User, targetUserID string) bool {
	if caller.ID == targetUserID {
		return true
	}
	return caller.HasAnyAuthority(domain.RoleAdmin, domain.RoleUser)
}

// CanAccessBook reports whether the book is assigned to the caller. Roles do
// not matter here; only the ownership link does.
func (a *App) CanAccessBook(caller domain.User, bookID string) (bool, error) {
	assigned, err := a.store.IsBookAssignedToUser(caller.ID, bookID)
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}
	return assigned, nil
}
