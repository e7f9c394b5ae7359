package app

import (
	"testing"

	"onlinelibrary/pkg/domain"
)

func seedBook(t *testing.T, a *App, ownerID, title, genre string, rating float64) domain.Book {
	t.Helper()
	book, err := a.CreateBook(BookInput{Title: title, Genre: genre, Rating: rating}, ownerID)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return book
}

func TestCreatePurchase(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")
	book := seedBook(t, a, user.ID, "Dune", "SciFi", 4.5)

	purchase, err := a.CreatePurchase(user, book)
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if purchase.UserID != user.ID || purchase.BookID != book.ID {
		t.Fatalf("purchase links = %s/%s", purchase.UserID, purchase.BookID)
	}
	if purchase.Rating != 0 {
		t.Fatalf("rating = %d, want unrated", purchase.Rating)
	}

	// buying the same book again creates a second row
	again, err := a.CreatePurchase(user, book)
	if err != nil {
		t.Fatalf("CreatePurchase again: %v", err)
	}
	if again.ID == purchase.ID {
		t.Fatal("duplicate purchase must get its own id")
	}
	purchases, _ := a.ListPurchasesByUser(user.ID)
	if len(purchases) != 2 {
		t.Fatalf("purchases = %d, want 2", len(purchases))
	}
}

func TestGetPurchaseByIDAndUser(t *testing.T) {
	a, st := newTestApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	other := mustCreateUser(t, st, "other@example.com", "pass1234")
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.5)

	purchase, err := a.CreatePurchase(owner, book)
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}

	got, err := a.GetPurchaseByIDAndUser(purchase.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetPurchaseByIDAndUser: %v", err)
	}
	if got.ID != purchase.ID {
		t.Fatalf("id = %s", got.ID)
	}

	_, err = a.GetPurchaseByIDAndUser(purchase.ID, other.ID)
	typed, ok := AsError(err)
	if !ok || typed.Kind != KindNotFound {
		t.Fatalf("err = %v, want not found for foreign purchase", err)
	}
	if typed.Message != "Purchase not found or not owned by user." {
		t.Fatalf("message = %q", typed.Message)
	}
}

func TestRatePurchase(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")
	book := seedBook(t, a, user.ID, "Dune", "SciFi", 4.5)
	purchase, err := a.CreatePurchase(user, book)
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}

	if err := a.RatePurchase(purchase.ID, 5); err != nil {
		t.Fatalf("RatePurchase: %v", err)
	}
	got, _, _ := st.GetPurchase(purchase.ID)
	if got.Rating != 5 {
		t.Fatalf("rating = %d, want 5", got.Rating)
	}

	// re-rating overwrites
	if err := a.RatePurchase(purchase.ID, 2); err != nil {
		t.Fatalf("RatePurchase: %v", err)
	}
	got, _, _ = st.GetPurchase(purchase.ID)
	if got.Rating != 2 {
		t.Fatalf("rating = %d, want 2", got.Rating)
	}
}

func TestRatePurchaseUnknownIDIsNoOp(t *testing.T) {
	a, _ := newTestApp(t)
	if err := a.RatePurchase("no-such-purchase", 5); err != nil {
		t.Fatalf("RatePurchase on unknown id must succeed silently, got %v", err)
	}
}
