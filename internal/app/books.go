package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/domain"
)

const coverURLExpiry = 15 * time.Minute

// BookInput carries book fields for create and update operations.
type BookInput struct {
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	ISBN        string    `json:"isbn"`
	Image       string    `json:"image"`
	Published   time.Time `json:"published"`
	Publisher   string    `json:"publisher"`
	Rating      float64   `json:"rating"`
}

// CreateBook persists the book and assigns it to the owner.
func (a *App) CreateBook(in BookInput, ownerID string) (domain.Book, error) {
	if in.Title == "" {
		return domain.Book{}, validation(map[string]string{"title": "Title is required."})
	}
	book := domain.Book{
		ID:          util.NewID(),
		Title:       in.Title,
		Author:      in.Author,
		Genre:       in.Genre,
		Description: in.Description,
		ISBN:        in.ISBN,
		Image:       in.Image,
		Published:   in.Published,
		Publisher:   in.Publisher,
		Rating:      in.Rating,
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	if err := a.store.AssignBookToUser(ownerID, book.ID); err != nil {
		return domain.Book{}, fmt.Errorf("assign book: %w", err)
	}
	slog.Info("book created", "id", book.ID, "owner", ownerID)
	return book, nil
}

// GetBookByID returns the book or NotFound.
func (a *App) GetBookByID(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("load book: %w", err)
	}
	if !ok {
		return domain.Book{}, notFound("Book not found.")
	}
	return book, nil
}

// ListBooks returns the whole catalog.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// ListBooksByUser returns the books assigned to a user.
func (a *App) ListBooksByUser(userID string) ([]domain.Book, error) {
	return a.store.ListBooksByUser(userID)
}

// ListBooksByGenre returns all catalog books of one genre.
func (a *App) ListBooksByGenre(genre string) ([]domain.Book, error) {
	return a.store.ListBooksByGenre(genre)
}

// UpdateBook overwrites the book's fields or returns NotFound.
func (a *App) UpdateBook(id string, in BookInput) (domain.Book, error) {
	book, err := a.GetBookByID(id)
	if err != nil {
		return domain.Book{}, err
	}
	book.Title = in.Title
	book.Author = in.Author
	book.Genre = in.Genre
	book.Description = in.Description
	book.ISBN = in.ISBN
	book.Image = in.Image
	book.Published = in.Published
	book.Publisher = in.Publisher
	book.Rating = in.Rating
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	slog.Info("book updated", "id", book.ID)
	return book, nil
}

// DeleteBook removes the book or returns NotFound.
func (a *App) DeleteBook(id string) error {
	if _, err := a.GetBookByID(id); err != nil {
		return err
	}
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	slog.Info("book deleted", "id", id)
	return nil
}

// UploadCover stores a cover image in the object store and records its key
// on the book. Requires an object store to be configured.
func (a *App) UploadCover(ctx context.Context, bookID string, r io.Reader, size int64, contentType string) (domain.Book, error) {
	if a.covers == nil {
		return domain.Book{}, notFound("Cover storage is not configured.")
	}
	book, err := a.GetBookByID(bookID)
	if err != nil {
		return domain.Book{}, err
	}
	key := fmt.Sprintf("covers/%s/%s", bookID, util.NewID())
	if err := a.covers.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	if book.CoverKey != "" {
		// best-effort cleanup of the previous cover
		_ = a.covers.Delete(ctx, book.CoverKey)
	}
	book.CoverKey = key
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	slog.Info("cover uploaded", "book", bookID, "key", key)
	return book, nil
}

// CoverURL returns a presigned GET URL for the book's stored cover.
func (a *App) CoverURL(ctx context.Context, bookID string) (string, error) {
	if a.covers == nil {
		return "", notFound("Cover storage is not configured.")
	}
	book, err := a.GetBookByID(bookID)
	if err != nil {
		return "", err
	}
	if book.CoverKey == "" {
		return "", notFound("Book has no stored cover.")
	}
	url, err := a.covers.PresignGet(ctx, book.CoverKey, coverURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url, nil
}
