package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hazyhaar/progsync/horosafe"
	"github.com/hazyhaar/progsync/idgen"
)

var newSessionID = idgen.Prefixed("ses_", idgen.Default)

// GenerateToken creates a signed HS256 JWT from claims, valid for expiry.
// A session id (jti) is assigned when the claims carry none.
func GenerateToken(secret []byte, claims *Claims, expiry time.Duration) (string, error) {
	if err := horosafe.ValidateSecret(secret); err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	if claims.UserID == "" {
		return "", errors.New("auth: claims without user id")
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	if claims.ID == "" {
		claims.ID = newSessionID()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates a JWT string. The signing method is
// pinned to HS256.
func ValidateToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v (only HS256 allowed)", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
