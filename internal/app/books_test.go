package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"onlinelibrary/pkg/storage"
	"onlinelibrary/pkg/store"
	"onlinelibrary/pkg/token"
)

// fakeObjectStore records puts and deletes in memory.
type fakeObjectStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", fmt.Errorf("no such object %s", key)
	}
	return "https://covers.test/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

var _ storage.ObjectStore = (*fakeObjectStore)(nil)

func newCoverApp(t *testing.T) (*App, *store.MemoryStore, *fakeObjectStore) {
	t.Helper()
	st := store.NewMemoryStore()
	tokens, err := token.NewProvider("test-secret", 0, 0)
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	covers := newFakeObjectStore()
	a, err := New(Config{Store: st, Tokens: tokens, Covers: covers})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	return a, st, covers
}

func TestCreateBook(t *testing.T) {
	a, st := newTestApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")

	book, err := a.CreateBook(BookInput{Title: "Dune", Genre: "SciFi"}, owner.ID)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	assigned, _ := st.IsBookAssignedToUser(owner.ID, book.ID)
	if !assigned {
		t.Fatal("created book must be assigned to its owner")
	}

	_, err = a.CreateBook(BookInput{}, owner.ID)
	typed, ok := AsError(err)
	if !ok || typed.Kind != KindValidation {
		t.Fatalf("err = %v, want validation failure for missing title", err)
	}
}

func TestUpdateAndDeleteBook(t *testing.T) {
	a, st := newTestApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.0)

	updated, err := a.UpdateBook(book.ID, BookInput{Title: "Dune Messiah", Genre: "SciFi", Rating: 4.2})
	if err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
	if updated.Title != "Dune Messiah" || updated.Rating != 4.2 {
		t.Fatalf("updated = %+v", updated)
	}

	if err := a.DeleteBook(book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	err = a.DeleteBook(book.ID)
	typed, ok := AsError(err)
	if !ok || typed.Kind != KindNotFound || typed.Message != "Book not found." {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestUploadCover(t *testing.T) {
	a, st, covers := newCoverApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.0)

	payload := []byte("first-cover-bytes")
	withCover, err := a.UploadCover(context.Background(), book.ID, bytes.NewReader(payload), int64(len(payload)), "image/png")
	if err != nil {
		t.Fatalf("UploadCover: %v", err)
	}
	if withCover.CoverKey == "" || !strings.HasPrefix(withCover.CoverKey, "covers/"+book.ID+"/") {
		t.Fatalf("cover key = %q", withCover.CoverKey)
	}
	if !bytes.Equal(covers.objects[withCover.CoverKey], payload) {
		t.Fatal("cover bytes not stored")
	}

	// replacing the cover deletes the old object
	replaced, err := a.UploadCover(context.Background(), book.ID, strings.NewReader("second"), 6, "image/png")
	if err != nil {
		t.Fatalf("UploadCover replace: %v", err)
	}
	if replaced.CoverKey == withCover.CoverKey {
		t.Fatal("replacement must use a new key")
	}
	if len(covers.deleted) != 1 || covers.deleted[0] != withCover.CoverKey {
		t.Fatalf("deleted = %v", covers.deleted)
	}

	url, err := a.CoverURL(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("CoverURL: %v", err)
	}
	if url != "https://covers.test/"+replaced.CoverKey {
		t.Fatalf("url = %q", url)
	}
}

func TestCoverURLWithoutCover(t *testing.T) {
	a, st, _ := newCoverApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.0)

	_, err := a.CoverURL(context.Background(), book.ID)
	typed, ok := AsError(err)
	if !ok || typed.Kind != KindNotFound {
		t.Fatalf("err = %v, want not found for missing cover", err)
	}
}

func TestCoverOperationsWithoutStorage(t *testing.T) {
	a, st := newTestApp(t)
	owner := mustCreateUser(t, st, "owner@example.com", "pass1234")
	book := seedBook(t, a, owner.ID, "Dune", "SciFi", 4.0)

	if _, err := a.UploadCover(context.Background(), book.ID, strings.NewReader("x"), 1, "image/png"); err == nil {
		t.Fatal("UploadCover must fail when storage is not configured")
	}
	if _, err := a.CoverURL(context.Background(), book.ID); err == nil {
		t.Fatal("CoverURL must fail when storage is not configured")
	}
}
