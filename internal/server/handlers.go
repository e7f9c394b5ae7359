package server

import (
	"net/http"
	"strconv"
	"strings"

	"onlinelibrary/internal/app"
	"onlinelibrary/pkg/domain"
)

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(s.loginLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "Too many requests.")
		return
	}
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	pair, err := s.app.Login(email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(s.registerLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "Too many requests.")
		return
	}
	var in app.UserInput
	if !decodeBody(w, r, &in) {
		return
	}
	user, err := s.app.CreateUser(in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(s.refreshLimiter, r) {
		writeError(w, http.StatusTooManyRequests, "Too many requests.")
		return
	}
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pair, err := s.app.Refresh(req.RefreshToken)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// --- users ---

// /api/v1/users/{id} or /api/v1/users/{id}/books
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, caller domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	if !app.CanAccessUser(caller, id) {
		writeAppError(w, app.ErrAccessDenied)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "books" {
			writeError(w, http.StatusNotFound, "Not found.")
			return
		}
		s.handleUserBooks(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.app.GetUserByID(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var in app.UserInput
		if !decodeBody(w, r, &in) {
			return
		}
		user, err := s.app.UpdateUser(id, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := s.app.DeleteUser(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUserBooks(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.app.ListBooksByUser(userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, books)
	case http.MethodPost:
		var in app.BookInput
		if !decodeBody(w, r, &in) {
			return
		}
		book, err := s.app.CreateBook(in, userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

// --- books ---

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.ListBooks()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// /api/v1/books/{id} or /api/v1/books/{id}/cover
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	if len(parts) == 2 {
		if parts[1] != "cover" {
			writeError(w, http.StatusNotFound, "Not found.")
			return
		}
		s.handleBookCover(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		// reads are public
		book, err := s.app.GetBookByID(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		if _, ok := s.requireBookAccess(w, r, id); !ok {
			return
		}
		var in app.BookInput
		if !decodeBody(w, r, &in) {
			return
		}
		book, err := s.app.UpdateBook(id, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if _, ok := s.requireBookAccess(w, r, id); !ok {
			return
		}
		if err := s.app.DeleteBook(id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// requireBookAccess enforces the ownership link for mutating book routes.
func (s *Server) requireBookAccess(w http.ResponseWriter, r *http.Request, bookID string) (domain.User, bool) {
	caller, authed := userFromContext(r.Context())
	if !authed {
		writeError(w, http.StatusUnauthorized, "Access denied.")
		return domain.User{}, false
	}
	allowed, err := s.app.CanAccessBook(caller, bookID)
	if err != nil {
		writeAppError(w, err)
		return domain.User{}, false
	}
	if !allowed {
		writeAppError(w, app.ErrAccessDenied)
		return domain.User{}, false
	}
	return caller, true
}

func (s *Server) handleBookCover(w http.ResponseWriter, r *http.Request, bookID string) {
	switch r.Method {
	case http.MethodGet:
		url, err := s.app.CoverURL(r.Context(), bookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case http.MethodPost:
		if _, ok := s.requireBookAccess(w, r, bookID); !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data.")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "File is required (field: file).")
			return
		}
		defer file.Close()
		book, err := s.app.UploadCover(r.Context(), bookID, file, header.Size, header.Header.Get("Content-Type"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	default:
		methodNotAllowed(w)
	}
}

// --- purchases ---

// /api/v1/purchases/buy/{bookId}, /api/v1/purchases/user,
// /api/v1/purchases/rate/{purchaseId}/{rating}, /api/v1/purchases/{purchaseId}
func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request, caller domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/purchases/")
	parts := strings.Split(path, "/")

	switch {
	case parts[0] == "buy" && len(parts) == 2:
		s.handleBuy(w, r, caller, parts[1])
	case parts[0] == "user" && len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		purchases, err := s.app.ListPurchasesByUser(caller.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, purchases)
	case parts[0] == "rate" && len(parts) == 3:
		s.handleRate(w, r, parts[1], parts[2])
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		purchase, err := s.app.GetPurchaseByIDAndUser(parts[0], caller.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, purchase)
	default:
		writeError(w, http.StatusNotFound, "Not found.")
	}
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request, caller domain.User, bookID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	allowed, err := s.app.CanAccessBook(caller, bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !allowed {
		writeAppError(w, app.ErrAccessDenied)
		return
	}
	book, err := s.app.GetBookByID(bookID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	purchase, err := s.app.CreatePurchase(caller, book)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, purchaseID, ratingRaw string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	rating, err := strconv.Atoi(ratingRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rating.")
		return
	}
	// a missing purchase id is silently accepted
	if err := s.app.RatePurchase(purchaseID, rating); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- recommendations ---

// /api/v1/recommendations/{userId}
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/recommendations/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	books, err := s.app.RecommendBooksForUser(userID, nil)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// --- admin catalog import ---

func (s *Server) handleImportEnqueue(w http.ResponseWriter, r *http.Request, caller domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.importQueue == nil {
		writeError(w, http.StatusNotFound, "Catalog import is not configured.")
		return
	}
	job, err := s.importQueue.Enqueue(r.Context(), caller.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.importQueue == nil {
		writeError(w, http.StatusNotFound, "Catalog import is not configured.")
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/catalog/import/")
	job, ok, err := s.importQueue.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Import job not found.")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
