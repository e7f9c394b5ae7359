package importdata

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/auth"
	"onlinelibrary/pkg/domain"
	"onlinelibrary/pkg/store"
)

// DefaultBooksAPIURL is the public catalog source used when none is configured.
const DefaultBooksAPIURL = "https://fakerapi.it/api/v1/books?_quantity=100&_locale=en_US"

const cardExpirationLayout = "Jan 2, 2006"

// Loader seeds the store from the bundled user CSV and the remote book API.
type Loader struct {
	store       store.Store
	csvPath     string
	booksAPIURL string
	httpClient  *http.Client
}

// Config configures a Loader.
type Config struct {
	Store       store.Store
	CSVPath     string
	BooksAPIURL string
	HTTPClient  *http.Client
}

// New builds a Loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Store == nil {
		return nil, errors.New("importdata: store is required")
	}
	url := strings.TrimSpace(cfg.BooksAPIURL)
	if url == "" {
		url = DefaultBooksAPIURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{
		store:       cfg.Store,
		csvPath:     cfg.CSVPath,
		booksAPIURL: url,
		httpClient:  client,
	}, nil
}

// Run wipes users and books and reloads both from their sources. The two
// sources are fetched concurrently; writes happen after both succeed so a
// failed fetch leaves nothing half-imported beyond the wipe.
func (l *Loader) Run(ctx context.Context) error {
	roles := []domain.Authority{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin}
	if err := l.store.EnsureAuthorities(roles); err != nil {
		return fmt.Errorf("ensure authorities: %w", err)
	}

	var (
		users []domain.User
		books []domain.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = l.loadUsers()
		return err
	})
	g.Go(func() error {
		var err error
		books, err = l.fetchBooks(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := l.store.DeleteAllUsers(); err != nil {
		return fmt.Errorf("wipe users: %w", err)
	}
	if err := l.store.DeleteAllBooks(); err != nil {
		return fmt.Errorf("wipe books: %w", err)
	}

	for _, user := range users {
		if err := l.store.SaveUser(user); err != nil {
			return fmt.Errorf("save user %s: %w", user.Email, err)
		}
	}
	for _, book := range books {
		if err := l.store.SaveBook(book); err != nil {
			return fmt.Errorf("save book %s: %w", book.Title, err)
		}
	}

	if err := l.assignBooksToAdmins(books); err != nil {
		return err
	}

	slog.Info("catalog import finished", "users", len(users), "books", len(books))
	return nil
}

// loadUsers parses the CSV seed file and appends the admin fixtures.
func (l *Loader) loadUsers() ([]domain.User, error) {
	var users []domain.User
	if l.csvPath != "" {
		parsed, err := l.parseUsersCSV()
		if err != nil {
			return nil, err
		}
		users = parsed
	}

	admin, err := fixtureUser("Admin", "admin@gmail.com", domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	superAdmin, err := fixtureUser("Super Admin", "superadmin@gmail.com", domain.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	return append(users, admin, superAdmin), nil
}

func fixtureUser(name, email string, role domain.Authority) (domain.User, error) {
	hash, err := auth.HashPassword(strings.ToUpper(strings.ReplaceAll(name, " ", "")))
	if err != nil {
		return domain.User{}, fmt.Errorf("hash fixture password: %w", err)
	}
	return domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Authorities:  []domain.Authority{role},
	}, nil
}

func (l *Loader) parseUsersCSV() ([]domain.User, error) {
	f, err := os.Open(l.csvPath)
	if err != nil {
		return nil, fmt.Errorf("open users csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 10

	var users []domain.User
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read users csv: %w", err)
		}
		if first {
			first = false
			continue
		}
		user, err := userFromRecord(record)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// userFromRecord maps a CSV row with columns
// name,phone,email,address,postalZip,country,password,pan,cardExpiration,cvv.
func userFromRecord(record []string) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(record[2]))
	hash, err := auth.HashPassword(record[6])
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password for %s: %w", email, err)
	}
	expiration, err := time.Parse(cardExpirationLayout, strings.TrimSpace(record[8]))
	if err != nil {
		return domain.User{}, fmt.Errorf("parse card expiration for %s: %w", email, err)
	}
	return domain.User{
		ID:             util.NewID(),
		Name:           record[0],
		Phone:          record[1],
		Email:          email,
		Address:        record[3],
		PostalZip:      record[4],
		Country:        record[5],
		PasswordHash:   hash,
		Pan:            record[7],
		CardExpiration: expiration,
		CVV:            record[9],
		Authorities:    []domain.Authority{domain.RoleUser},
	}, nil
}

type booksAPIResponse struct {
	Status string        `json:"status"`
	Total  int           `json:"total"`
	Data   []bookAPIItem `json:"data"`
}

type bookAPIItem struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
	ISBN        string `json:"isbn"`
	Image       string `json:"image"`
	Published   string `json:"published"`
	Publisher   string `json:"publisher"`
}

func (l *Loader) fetchBooks(ctx context.Context) ([]domain.Book, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.booksAPIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build books request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch books: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch books: unexpected status %d", resp.StatusCode)
	}

	var payload booksAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode books response: %w", err)
	}

	books := make([]domain.Book, 0, len(payload.Data))
	for _, item := range payload.Data {
		published, err := time.Parse("2006-01-02", item.Published)
		if err != nil {
			// skip rows with a malformed date rather than abort the import
			slog.Warn("skipping book with bad published date", "title", item.Title, "published", item.Published)
			continue
		}
		books = append(books, domain.Book{
			ID:          util.NewID(),
			Title:       item.Title,
			Author:      item.Author,
			Genre:       item.Genre,
			Description: item.Description,
			ISBN:        item.ISBN,
			Image:       item.Image,
			Published:   published,
			Publisher:   item.Publisher,
		})
	}
	return books, nil
}

// assignBooksToAdmins links every imported book to every ROLE_ADMIN user so
// admins can manage the full catalog.
func (l *Loader) assignBooksToAdmins(books []domain.Book) error {
	admins, err := l.store.ListUsersByAuthority(domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, admin := range admins {
		for _, book := range books {
			if err := l.store.AssignBookToUser(admin.ID, book.ID); err != nil {
				return fmt.Errorf("assign book %s to %s: %w", book.ID, admin.Email, err)
			}
		}
	}
	return nil
}
