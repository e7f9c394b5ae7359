package store

import (
	"sync"

	"onlinelibrary/pkg/domain"
)

type assignment struct {
	userID string
	bookID string
}

// MemoryStore keeps all state in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	books       map[string]domain.Book
	bookOrder   []string
	purchases   map[string]domain.Purchase
	orderOrder  []string
	assignments map[assignment]struct{}
	authorities map[domain.Authority]struct{}
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		books:       make(map[string]domain.Book),
		purchases:   make(map[string]domain.Purchase),
		assignments: make(map[assignment]struct{}),
		authorities: make(map[domain.Authority]struct{}),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.email, u.Email)
	}
	delete(m.users, id)
	for key := range m.assignments {
		if key.userID == id {
			delete(m.assignments, key)
		}
	}
	return nil
}

func (m *MemoryStore) ListUsersByAuthority(role domain.Authority) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0)
	for _, u := range m.users {
		if u.HasAnyAuthority(role) {
			res = append(res, u)
		}
	}
	return res, nil
}

func (m *MemoryStore) AssignBookToUser(userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[assignment{userID: userID, bookID: bookID}] = struct{}{}
	return nil
}

func (m *MemoryStore) IsBookAssignedToUser(userID, bookID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.assignments[assignment{userID: userID, bookID: bookID}]
	return ok, nil
}

func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.bookOrder))
	for _, id := range m.bookOrder {
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListBooksByUser(userID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0)
	for _, id := range m.bookOrder {
		if _, ok := m.assignments[assignment{userID: userID, bookID: id}]; !ok {
			continue
		}
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListBooksByGenre(genre string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0)
	for _, id := range m.bookOrder {
		if b, ok := m.books[id]; ok && b.Genre == genre {
			res = append(res, b)
		}
	}
	return res, nil
}

func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	for key := range m.assignments {
		if key.bookID == id {
			delete(m.assignments, key)
		}
	}
	return nil
}

func (m *MemoryStore) SavePurchase(p domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.purchases[p.ID]; !exists {
		m.orderOrder = append(m.orderOrder, p.ID)
	}
	m.purchases[p.ID] = p
	return nil
}

func (m *MemoryStore) GetPurchase(id string) (domain.Purchase, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchases[id]
	return p, ok, nil
}

func (m *MemoryStore) GetPurchaseByIDAndUser(id, userID string) (domain.Purchase, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchases[id]
	if !ok || p.UserID != userID {
		return domain.Purchase{}, false, nil
	}
	return p, true, nil
}

func (m *MemoryStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Purchase, 0)
	for _, id := range m.orderOrder {
		if p, ok := m.purchases[id]; ok && p.UserID == userID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MemoryStore) EnsureAuthorities(roles []domain.Authority) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range roles {
		m.authorities[role] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) DeleteAllUsers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]domain.User)
	m.email = make(map[string]string)
	m.assignments = make(map[assignment]struct{})
	return nil
}

func (m *MemoryStore) DeleteAllBooks() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = make(map[string]domain.Book)
	m.bookOrder = nil
	for key := range m.assignments {
		delete(m.assignments, key)
	}
	return nil
}
