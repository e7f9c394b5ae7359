package domain

import "time"

type Authority string

const (
	RoleUser       Authority = "ROLE_USER"
	RoleAdmin      Authority = "ROLE_ADMIN"
	RoleSuperAdmin Authority = "ROLE_SUPER_ADMIN"
)

// ParseAuthority maps a stored role name onto the fixed enumeration.
func ParseAuthority(name string) (Authority, bool) {
	switch Authority(name) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Authority(name), true
	default:
		return "", false
	}
}

type User struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Phone                string      `json:"phone"`
	Email                string      `json:"email"`
	Address              string      `json:"address"`
	PostalZip            string      `json:"postalZip"`
	Country              string      `json:"country"`
	Pan                  string      `json:"pan"`
	PasswordHash         string      `json:"-"`
	CardExpiration       time.Time   `json:"expirationDate"`
	CVV                  string      `json:"-"`
	Authorities          []Authority `json:"authorities"`
}

// HasAnyAuthority reports whether the user holds at least one of the roles.
func (u User) HasAnyAuthority(roles ...Authority) bool {
	for _, role := range roles {
		for _, held := range u.Authorities {
			if held == role {
				return true
			}
		}
	}
	return false
}

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	ISBN        string    `json:"isbn"`
	Image       string    `json:"image"`
	CoverKey    string    `json:"-"`
	Published   time.Time `json:"published"`
	Publisher   string    `json:"publisher"`
	Rating      float64   `json:"rating"`
}

type Purchase struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	BookID       string    `json:"bookId"`
	PurchaseDate time.Time `json:"purchaseDate"`
	// Rating stays 0 until the buyer rates the purchase.
	Rating int `json:"rating"`
}
