package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMaker signs and verifies the bearer tokens that carry a session id
// between requests. Who the customer is was established elsewhere; the
// token only binds requests to a session.
type TokenMaker struct {
	secret []byte
	issuer string
}

func NewTokenMaker(secret string) *TokenMaker {
	return &TokenMaker{
		secret: []byte(secret),
		issuer: "cellar-society",
	}
}

type Claims struct {
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
	jwt.RegisteredClaims
}

func (t *TokenMaker) New(sessionID, customerID string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		SessionID:  sessionID,
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *TokenMaker) Parse(tokenStr string) (Claims, error) {
	var c Claims

	token, err := jwt.ParseWithClaims(tokenStr, &c, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	if c.Issuer != "" && c.Issuer != t.issuer {
		return Claims{}, errors.New("invalid issuer")
	}

	return c, nil
}
