// Package token issues and validates access tokens for wallet sessions.
// Access tokens are signed JWTs; refresh tokens are random opaque strings
// the caller persists however it sees fit.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/secrets"
)

// Claims are the JWT claims carried by wallet access tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id,omitempty"`
	Stage    string `json:"stage,omitempty"`
	jwt.RegisteredClaims
}

// Pair is one issuance result: a signed access token and an opaque refresh
// token.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service signs and validates access tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

func NewService(signingKey, issuer, audience string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Issue signs an access token for the user and mints a fresh refresh token.
func (s *Service) Issue(userID id.UserID, clientID *id.ClientID, stage string) (Pair, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		UserID: userID.String(),
		Stage:  stage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	}
	if clientID != nil {
		claims.ClientID = clientID.String()
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return Pair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	refresh, err := secrets.GenerateToken()
	if err != nil {
		return Pair{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	return Pair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// Validate parses and checks a signed access token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// UserID extracts and parses the subject user id from a signed token.
func (s *Service) UserID(tokenString string) (id.UserID, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return id.UserID{}, err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return userID, nil
}
