package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/domain"
)

const migrateLockID int64 = 52110521

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&AuthorityModel{}, &UserModel{}, &BookModel{}, &PurchaseModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user, replacing its authority set.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "phone", "email", "address", "postal_zip", "country",
				"pan", "password_hash", "card_expiration", "cvv", "updated_at",
			}),
		}).Create(&model).Error; err != nil {
			return err
		}
		names := make([]string, 0, len(u.Authorities))
		for _, role := range u.Authorities {
			names = append(names, string(role))
		}
		var roles []AuthorityModel
		if len(names) > 0 {
			if err := tx.Where("name IN ?", names).Find(&roles).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model).Association("Authorities").Replace(&roles)
	})
}

// GetUserByID returns a user by ID with authorities loaded.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Preload("Authorities").First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email with authorities loaded.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Preload("Authorities").Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteUser removes the user and its join rows.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_authority WHERE user_model_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_books WHERE user_model_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// ListUsersByAuthority returns users holding the given role.
func (s *GormStore) ListUsersByAuthority(role domain.Authority) ([]domain.User, error) {
	var models []UserModel
	err := s.db.Preload("Authorities").
		Joins("JOIN user_authority ua ON ua.user_model_id = user_models.id").
		Joins("JOIN authority_models a ON a.id = ua.authority_model_id").
		Where("a.name = ?", string(role)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// AssignBookToUser links a book to a user in the ownership join table.
func (s *GormStore) AssignBookToUser(userID, bookID string) error {
	assigned, err := s.IsBookAssignedToUser(userID, bookID)
	if err != nil {
		return err
	}
	if assigned {
		return nil
	}
	return s.db.Exec(
		"INSERT INTO user_books (user_model_id, book_model_id) VALUES (?, ?)",
		userID, bookID,
	).Error
}

// IsBookAssignedToUser reports whether the (user, book) ownership link exists.
func (s *GormStore) IsBookAssignedToUser(userID, bookID string) (bool, error) {
	var count int64
	err := s.db.Table("user_books").
		Where("user_model_id = ? AND book_model_id = ?", userID, bookID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveBook stores or updates a book.
func (s *GormStore) SaveBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "author", "genre", "description", "isbn", "image",
			"cover_key", "published", "publisher", "rating", "updated_at",
		}),
	}).Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by created_at.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	return s.listBooks(s.db.Order("created_at ASC"))
}

// ListBooksByUser returns books assigned to the user.
func (s *GormStore) ListBooksByUser(userID string) ([]domain.Book, error) {
	return s.listBooks(s.db.
		Joins("JOIN user_books ub ON ub.book_model_id = book_models.id").
		Where("ub.user_model_id = ?", userID).
		Order("book_models.created_at ASC"))
}

// ListBooksByGenre returns books filtered by genre.
func (s *GormStore) ListBooksByGenre(genre string) ([]domain.Book, error) {
	return s.listBooks(s.db.Where("genre = ?", genre).Order("created_at ASC"))
}

func (s *GormStore) listBooks(tx *gorm.DB) ([]domain.Book, error) {
	var models []BookModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// DeleteBook removes a book and its ownership links.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_books WHERE book_model_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// SavePurchase stores or updates a purchase record.
func (s *GormStore) SavePurchase(p domain.Purchase) error {
	model := purchaseToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating"}),
	}).Create(&model).Error
}

// GetPurchase retrieves a purchase by ID.
func (s *GormStore) GetPurchase(id string) (domain.Purchase, bool, error) {
	var model PurchaseModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Purchase{}, false, nil
		}
		return domain.Purchase{}, false, err
	}
	return purchaseFromModel(model), true, nil
}

// GetPurchaseByIDAndUser retrieves a purchase only when owned by the user.
func (s *GormStore) GetPurchaseByIDAndUser(id, userID string) (domain.Purchase, bool, error) {
	var model PurchaseModel
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Purchase{}, false, nil
		}
		return domain.Purchase{}, false, err
	}
	return purchaseFromModel(model), true, nil
}

// ListPurchasesByUser returns all purchases of a user ordered by date.
func (s *GormStore) ListPurchasesByUser(userID string) ([]domain.Purchase, error) {
	var models []PurchaseModel
	if err := s.db.Where("user_id = ?", userID).Order("purchase_date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Purchase, 0, len(models))
	for _, m := range models {
		res = append(res, purchaseFromModel(m))
	}
	return res, nil
}

// EnsureAuthorities upserts the fixed authority rows.
func (s *GormStore) EnsureAuthorities(roles []domain.Authority) error {
	for _, role := range roles {
		model := AuthorityModel{ID: util.NewID(), Name: string(role)}
		if err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&model).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllUsers wipes users and their join rows (seeding only).
func (s *GormStore) DeleteAllUsers() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_authority").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_books").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM user_models").Error
	})
}

// DeleteAllBooks wipes books and their ownership links (seeding only).
func (s *GormStore) DeleteAllBooks() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_books").Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM book_models").Error
	})
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:             u.ID,
		Name:           u.Name,
		Phone:          u.Phone,
		Email:          u.Email,
		Address:        u.Address,
		PostalZip:      u.PostalZip,
		Country:        u.Country,
		Pan:            u.Pan,
		PasswordHash:   u.PasswordHash,
		CardExpiration: datatypes.Date(u.CardExpiration),
		CVV:            u.CVV,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func userFromModel(m UserModel) domain.User {
	roles := make([]domain.Authority, 0, len(m.Authorities))
	for _, a := range m.Authorities {
		if role, ok := domain.ParseAuthority(a.Name); ok {
			roles = append(roles, role)
		}
	}
	return domain.User{
		ID:             m.ID,
		Name:           m.Name,
		Phone:          m.Phone,
		Email:          m.Email,
		Address:        m.Address,
		PostalZip:      m.PostalZip,
		Country:        m.Country,
		Pan:            m.Pan,
		PasswordHash:   m.PasswordHash,
		CardExpiration: time.Time(m.CardExpiration),
		CVV:            m.CVV,
		Authorities:    roles,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Description: b.Description,
		ISBN:        b.ISBN,
		Image:       b.Image,
		CoverKey:    b.CoverKey,
		Published:   datatypes.Date(b.Published),
		Publisher:   b.Publisher,
		Rating:      b.Rating,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Genre:       m.Genre,
		Description: m.Description,
		ISBN:        m.ISBN,
		Image:       m.Image,
		CoverKey:    m.CoverKey,
		Published:   time.Time(m.Published),
		Publisher:   m.Publisher,
		Rating:      m.Rating,
	}
}

func purchaseToModel(p domain.Purchase) PurchaseModel {
	return PurchaseModel{
		ID:           p.ID,
		UserID:       p.UserID,
		BookID:       p.BookID,
		PurchaseDate: p.PurchaseDate,
		Rating:       p.Rating,
	}
}

func purchaseFromModel(m PurchaseModel) domain.Purchase {
	return domain.Purchase{
		ID:           m.ID,
		UserID:       m.UserID,
		BookID:       m.BookID,
		PurchaseDate: m.PurchaseDate,
		Rating:       m.Rating,
	}
}
