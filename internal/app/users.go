package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/auth"
	"onlinelibrary/pkg/domain"
)

// UserInput carries user fields for create and update operations.
type UserInput struct {
	Name                 string    `json:"name"`
	Phone                string    `json:"phone"`
	Email                string    `json:"email"`
	Address              string    `json:"address"`
	PostalZip            string    `json:"postalZip"`
	Country              string    `json:"country"`
	Pan                  string    `json:"pan"`
	Password             string    `json:"password"`
	PasswordConfirmation string    `json:"passwordConfirmation"`
	CardExpiration       time.Time `json:"expirationDate"`
	CVV                  string    `json:"cvv"`
}

// CreateUser registers a new user with the default ROLE_USER authority.
func (a *App) CreateUser(in UserInput) (domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required."
	}
	if in.Password == "" {
		fields["password"] = "Password is required."
	}
	if in.Password != in.PasswordConfirmation {
		fields["passwordConfirmation"] = "Password and password confirmation do not match."
	}
	if len(fields) > 0 {
		return domain.User{}, validation(fields)
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, conflict("User already exists.")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:             util.NewID(),
		Name:           in.Name,
		Phone:          in.Phone,
		Email:          email,
		Address:        in.Address,
		PostalZip:      in.PostalZip,
		Country:        in.Country,
		Pan:            in.Pan,
		PasswordHash:   hash,
		CardExpiration: in.CardExpiration,
		CVV:            in.CVV,
		Authorities:    []domain.Authority{domain.RoleUser},
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	slog.Info("user created", "email", user.Email)
	return user, nil
}

// GetUserByID returns the user or NotFound.
func (a *App) GetUserByID(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("User not found.")
	}
	return user, nil
}

// GetUserByEmail returns the user or NotFound.
func (a *App) GetUserByEmail(email string) (domain.User, error) {
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("User not found.")
	}
	return user, nil
}

// UpdateUser overwrites the user's profile fields. The supplied password is
// re-hashed as-is; callers that do not want a password change must send the
// current plaintext password again.
func (a *App) UpdateUser(id string, in UserInput) (domain.User, error) {
	user, err := a.GetUserByID(id)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user.Name = in.Name
	user.Phone = in.Phone
	user.Email = strings.TrimSpace(strings.ToLower(in.Email))
	user.Address = in.Address
	user.PostalZip = in.PostalZip
	user.Country = in.Country
	user.Pan = in.Pan
	user.PasswordHash = hash
	user.CardExpiration = in.CardExpiration
	user.CVV = in.CVV
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	slog.Info("user updated", "id", user.ID)
	return user, nil
}

// DeleteUser removes the user or returns NotFound.
func (a *App) DeleteUser(id string) error {
	if _, err := a.GetUserByID(id); err != nil {
		return err
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	slog.Info("user deleted", "id", id)
	return nil
}
