package auth

import (
	"fmt"
	"time"

	"github.com/fedutinova/pagegen/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const Audience = "pagegen-api"

type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 access token for an API client. There are no user
// accounts; tokens are minted by operators for the clients they trust.
func NewToken(secret, issuer, subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	cl := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{Audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature, expiry, issuer and audience.
func ParseToken(secret, issuer, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	cl := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, cl, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	return cl, nil
}
