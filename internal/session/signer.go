package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
)

// Signer wraps session ids into HS256 tokens carried by the session cookie.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (that *Signer) Issue(sessionID string) (string, error) {
	issuedAt := that.now()

	claims := jwt.RegisteredClaims{
		ID:       sessionID,
		IssuedAt: jwt.NewNumericDate(issuedAt),
	}

	if that.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(that.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Parse verifies tokenString and returns the session id it carries.
func (that *Signer) Parse(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims

	keyFunc := func(*jwt.Token) (any, error) {
		return that.secret, nil
	}

	_, err := jwt.ParseWithClaims(tokenString, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(that.now),
	)
	if err != nil {
		return "", errors.Join(apperror.ErrInvalidToken, err)
	}

	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", apperror.ErrInvalidToken)
	}

	return claims.ID, nil
}
