package app

import (
	"fmt"
	"sort"

	"onlinelibrary/pkg/domain"
)

// ByRatingDesc is the standard recommendation ordering.
func ByRatingDesc(a, b domain.Book) bool {
	return a.Rating > b.Rating
}

// RecommendBooksForUser derives candidate books from the genres the user has
// already purchased into, removes already-purchased titles, and sorts with
// the caller-supplied ordering. A book matching more than one contributing
// genre appears once per match.
func (a *App) RecommendBooksForUser(userID string, less func(x, y domain.Book) bool) ([]domain.Book, error) {
	if less == nil {
		less = ByRatingDesc
	}
	purchases, err := a.store.ListPurchasesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}

	genres := make(map[string]struct{})
	purchased := make(map[string]struct{})
	for _, purchase := range purchases {
		purchased[purchase.BookID] = struct{}{}
		book, ok, err := a.store.GetBook(purchase.BookID)
		if err != nil {
			return nil, fmt.Errorf("load purchased book: %w", err)
		}
		if !ok {
			continue
		}
		genres[book.Genre] = struct{}{}
	}

	candidates := make([]domain.Book, 0)
	for genre := range genres {
		books, err := a.store.ListBooksByGenre(genre)
		if err != nil {
			return nil, fmt.Errorf("load genre %q: %w", genre, err)
		}
		candidates = append(candidates, books...)
	}

	recommended := candidates[:0]
	for _, book := range candidates {
		if _, bought := purchased[book.ID]; bought {
			continue
		}
		recommended = append(recommended, book)
	}

	sort.SliceStable(recommended, func(i, j int) bool {
		return less(recommended[i], recommended[j])
	})
	return recommended, nil
}
