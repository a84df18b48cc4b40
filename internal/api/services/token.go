package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid input")

const DefaultTokenTTL = 72 * time.Hour

// IssueOperatorToken signs a token that unlocks the manual scan endpoint.
func IssueOperatorToken(jwtKey string, operatorID uuid.UUID, ttl time.Duration) (string, error) {
	if jwtKey == "" || operatorID == uuid.Nil {
		return "", ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := jwt.MapClaims{
		"id":  operatorID.String(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtKey))
}
