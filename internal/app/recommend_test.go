package app

import (
	"testing"

	"onlinelibrary/pkg/domain"
)

func TestRecommendBooksForUser(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")

	bought := seedBook(t, a, user.ID, "Dune", "SciFi", 4.0)
	low := seedBook(t, a, user.ID, "Solaris", "SciFi", 3.0)
	high := seedBook(t, a, user.ID, "Hyperion", "SciFi", 5.0)
	seedBook(t, a, user.ID, "Emma", "Romance", 4.8)

	if _, err := a.CreatePurchase(user, bought); err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}

	books, err := a.RecommendBooksForUser(user.ID, nil)
	if err != nil {
		t.Fatalf("RecommendBooksForUser: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("recommendations = %d, want 2 (same-genre, unpurchased)", len(books))
	}
	if books[0].ID != high.ID || books[1].ID != low.ID {
		t.Fatalf("order = %s, %s; want rating desc", books[0].Title, books[1].Title)
	}
	for _, b := range books {
		if b.ID == bought.ID {
			t.Fatal("purchased book must not be recommended")
		}
	}
}

func TestRecommendBooksForUserCustomOrder(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")

	bought := seedBook(t, a, user.ID, "Dune", "SciFi", 4.0)
	seedBook(t, a, user.ID, "Zothique", "SciFi", 2.0)
	seedBook(t, a, user.ID, "Anathem", "SciFi", 5.0)
	if _, err := a.CreatePurchase(user, bought); err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}

	books, err := a.RecommendBooksForUser(user.ID, func(x, y domain.Book) bool {
		return x.Title < y.Title
	})
	if err != nil {
		t.Fatalf("RecommendBooksForUser: %v", err)
	}
	if books[0].Title != "Anathem" || books[1].Title != "Zothique" {
		t.Fatalf("order = %s, %s; want title asc", books[0].Title, books[1].Title)
	}
}

func TestRecommendBooksForUserNoPurchases(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")
	seedBook(t, a, user.ID, "Dune", "SciFi", 4.0)

	books, err := a.RecommendBooksForUser(user.ID, nil)
	if err != nil {
		t.Fatalf("RecommendBooksForUser: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("recommendations = %d, want none without purchase history", len(books))
	}
}

func TestRecommendBooksSkipsVanishedPurchases(t *testing.T) {
	a, st := newTestApp(t)
	user := mustCreateUser(t, st, "reader@example.com", "pass1234")

	bought := seedBook(t, a, user.ID, "Dune", "SciFi", 4.0)
	seedBook(t, a, user.ID, "Solaris", "SciFi", 3.0)
	if _, err := a.CreatePurchase(user, bought); err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	// the purchased book disappears from the catalog; its genre no longer counts
	if err := st.DeleteBook(bought.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	books, err := a.RecommendBooksForUser(user.ID, nil)
	if err != nil {
		t.Fatalf("RecommendBooksForUser: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("recommendations = %d, want none when purchase history is dangling", len(books))
	}
}
