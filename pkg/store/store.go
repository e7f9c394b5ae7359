package store

import "onlinelibrary/pkg/domain"

// Store defines persistence operations for users, books, and purchases.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	DeleteUser(id string) error
	ListUsersByAuthority(role domain.Authority) ([]domain.User, error)

	// user/book assignment (the users<->books ownership join)
	AssignBookToUser(userID, bookID string) error
	IsBookAssignedToUser(userID, bookID string) (bool, error)

	// books
	SaveBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	ListBooksByUser(userID string) ([]domain.Book, error)
	ListBooksByGenre(genre string) ([]domain.Book, error)
	DeleteBook(id string) error

	// purchases
	SavePurchase(domain.Purchase) error
	GetPurchase(id string) (domain.Purchase, bool, error)
	GetPurchaseByIDAndUser(id, userID string) (domain.Purchase, bool, error)
	ListPurchasesByUser(userID string) ([]domain.Purchase, error)

	// seeding
	EnsureAuthorities(roles []domain.Authority) error
	DeleteAllUsers() error
	DeleteAllBooks() error
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
