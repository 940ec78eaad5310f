package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Spok95/ada-portal/internal/models"
)

var ErrInvalidSession = errors.New("invalid session")

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions выпускает и проверяет HS256-токены сессии.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Sessions) Issue(acc models.Account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.Email,
			Issuer:    "ada-portal",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

func (s *Sessions) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer("ada-portal"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
