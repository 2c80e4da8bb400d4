package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rfidattend/internal/errclass"
)

// RoleAdmin is the only role minted by this service.
const RoleAdmin = "admin"

// Token is a signed admin bearer token.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 token for subject that expires after ttl.
func Issue(subject, issuer, key string, ttl time.Duration, now time.Time) (Token, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims. Every failure is ErrUnauthorized.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", errclass.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errclass.ErrUnauthorized.WithMessage("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errclass.ErrUnauthorized.WithMessage("issuer mismatch")
	}
	if claims.Role != RoleAdmin {
		return Claims{}, errclass.ErrUnauthorized.WithMessage("role mismatch")
	}
	return *claims, nil
}
