package token

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"onlinelibrary/pkg/domain"
)

// Claims is the signed claim set carried by both token kinds.
// Roles are present on access tokens only.
type Claims struct {
	UserID string   `json:"id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Provider issues and validates HMAC-signed access and refresh tokens.
// The signing key is constructed once at startup and never mutated.
type Provider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewProvider builds a token provider around a process-wide secret.
func NewProvider(secret string, accessTTL, refreshTTL time.Duration) (*Provider, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Provider{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// NewAccessToken signs a short-lived token carrying identity and roles.
func (p *Provider) NewAccessToken(userID, email string, roles []domain.Authority) (string, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return p.sign(userID, email, names, p.accessTTL)
}

// NewRefreshToken signs a longer-lived token carrying only identity.
func (p *Provider) NewRefreshToken(userID, email string) (string, error) {
	return p.sign(userID, email, nil, p.refreshTTL)
}

func (p *Provider) sign(userID, email string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Validate reports whether the token has a good signature and is unexpired.
// Any structural parse failure counts as invalid.
func (p *Provider) Validate(token string) bool {
	_, err := p.Parse(token)
	return err == nil
}

// Parse verifies the signature and expiry and returns the embedded claims.
func (p *Provider) Parse(token string) (Claims, error) {
	claims := Claims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("invalid token format")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return Claims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, errors.New("token identity missing")
	}
	return claims, nil
}
