package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity and 2FA enrollment status asserted by a
// session token. The subject is the username.
type Claims struct {
	HasTwoFA bool `json:"has_2fa"`
	jwt.RegisteredClaims
}

func (s *Service) GenerateSessionToken(username string, hasTwoFA bool) (string, error) {
	expirationTime := time.Now().Add(s.config.Auth.SessionDuration)
	claims := &Claims{
		HasTwoFA: hasTwoFA,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Auth.JWTSecret))
}

func (s *Service) ValidateSessionToken(tokenString string) (*Claims, error) {
	return parseSessionToken(tokenString, s.config.Auth.JWTSecret)
}

// parseSessionToken is the single parsing path shared by the service and the
// bearer middleware.
func parseSessionToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
