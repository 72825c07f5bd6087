// Package jwtutil wraps an opaque session token in a signed, expiring
// envelope so that tampered or stale cookies are rejected before the session
// store is consulted.
package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session envelope")

type Claims struct {
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, expiration time.Duration, sessionToken string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign session envelope failed: %w", err)
	}
	return signed, nil
}

// ParseToken returns the session token carried by raw. Any signature, algorithm
// or expiry problem collapses into ErrInvalidToken.
func ParseToken(secret, raw string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.SessionToken == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionToken, nil
}
