package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Phone          string
	Email          string `gorm:"uniqueIndex;not null"`
	Address        string
	PostalZip      string
	Country        string
	Pan            string
	PasswordHash   string `gorm:"not null"`
	CardExpiration datatypes.Date
	CVV            string
	Authorities    []AuthorityModel `gorm:"many2many:user_authority"`
	Books          []BookModel      `gorm:"many2many:user_books"`
	CreatedAt      time.Time        `gorm:"not null"`
	UpdatedAt      time.Time
}

// AuthorityModel rows are shared reference data, re-seeded at startup.
type AuthorityModel struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type BookModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Author      string
	Genre       string `gorm:"index"`
	Description string `gorm:"type:text"`
	ISBN        string
	Image       string
	CoverKey    string
	Published   datatypes.Date
	Publisher   string
	Rating      float64   `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type PurchaseModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	BookID       string    `gorm:"not null;index"`
	PurchaseDate time.Time `gorm:"not null"`
	Rating       int       `gorm:"not null"`
}
