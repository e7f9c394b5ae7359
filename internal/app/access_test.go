package app

import (
	"testing"

	"onlinelibrary/pkg/domain"
)

func TestCanAccessUser(t *testing.T) {
	self := domain.User{ID: "u1", Authorities: []domain.Authority{domain.RoleSuperAdmin}}
	if !CanAccessUser(self, "u1") {
		t.Fatal("a user can always access their own record")
	}

	// The role clause admits any caller holding ROLE_ADMIN or ROLE_USER,
	// regardless of whose record is targeted. Regular users therefore pass
	// for foreign ids too; only role-less callers are rejected.
	regular := domain.User{ID: "u2", Authorities: []domain.Authority{domain.RoleUser}}
	if !CanAccessUser(regular, "u1") {
		t.Fatal("ROLE_USER caller passes the role clause for any target")
	}

	admin := domain.User{ID: "u3", Authorities: []domain.Authority{domain.RoleAdmin}}
	if !CanAccessUser(admin, "u1") {
		t.Fatal("ROLE_ADMIN caller passes the role clause for any target")
	}

	superOnly := domain.User{ID: "u4", Authorities: []domain.Authority{domain.RoleSuperAdmin}}
	if CanAccessUser(superOnly, "u1") {
		t.Fatal("ROLE_SUPER_ADMIN alone does not pass the role clause for foreign targets")
	}

	roleless := domain.User{ID: "u5"}
	if CanAccessUser(roleless, "u1") {
		t.Fatal("caller without roles must be rejected for foreign targets")
	}
}

func TestCanAccessBook(t *testing.T) {
	a, st := newTestApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	other := mustCreateUser(t, st, "other@example.com", "pass1234", domain.RoleAdmin)
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.0)

	allowed, err := a.CanAccessBook(owner, book.ID)
	if err != nil {
		t.Fatalf("CanAccessBook: %v", err)
	}
	if !allowed {
		t.Fatal("owner must have access to their assigned book")
	}

	// roles are irrelevant here: only the assignment link counts
	allowed, err = a.CanAccessBook(other, book.ID)
	if err != nil {
		t.Fatalf("CanAccessBook: %v", err)
	}
	if allowed {
		t.Fatal("unassigned admin must not have access to the book")
	}
}
