package app

import (
	"fmt"
	"log/slog"
	"time"

	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/domain"
)

// CreatePurchase records a purchase of the book by the user. Duplicate
// purchases of the same book are allowed as separate rows.
func (a *App) CreatePurchase(user domain.User, book domain.Book) (domain.Purchase, error) {
	purchase := domain.Purchase{
		ID:           util.NewID(),
		UserID:       user.ID,
		BookID:       book.ID,
		PurchaseDate: time.Now().UTC(),
		Rating:       0,
	}
	if err := a.store.SavePurchase(purchase); err != nil {
		return domain.Purchase{}, fmt.Errorf("save purchase: %w", err)
	}
	slog.Info("purchase recorded", "user", user.ID, "book", book.ID)
	return purchase, nil
}

// ListPurchasesByUser returns all purchases made by the user.
func (a *App) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	return a.store.ListPurchasesByUser(userID)
}

// GetPurchaseByIDAndUser returns the purchase only when owned by the user.
func (a *App) GetPurchaseByIDAndUser(purchaseID, userID string) (domain.Purchase, error) {
	purchase, ok, err := a.store.GetPurchaseByIDAndUser(purchaseID, userID)
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("load purchase: %w", err)
	}
	if !ok {
		return domain.Purchase{}, notFound("Purchase not found or not owned by user.")
	}
	return purchase, nil
}

// RatePurchase overwrites the purchase rating. A missing purchase id is a
// silent no-op.
func (a *App) RatePurchase(purchaseID string, rating int) error {
	purchase, ok, err := a.store.GetPurchase(purchaseID)
	if err != nil {
		return fmt.Errorf("load purchase: %w", err)
	}
	if !ok {
		return nil
	}
	purchase.Rating = rating
	if err := a.store.SavePurchase(purchase); err != nil {
		return fmt.Errorf("save purchase: %w", err)
	}
	slog.Info("purchase rated", "id", purchaseID, "rating", rating)
	return nil
}
