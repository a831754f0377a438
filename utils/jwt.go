package utils

import (
	"errors"
	"time"

	"roomrental/models"

	"github.com/golang-jwt/jwt"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService signs and validates access tokens. Login lives in an external
// service that shares the secret; this side only needs to read tokens.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// GenerateToken creates a signed JWT for the given subject and role.
func (s *TokenService) GenerateToken(subject string, role models.Role, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates a token string and returns the token if valid.
func (s *TokenService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
}

// ActorFromToken validates the token and extracts the actor it identifies.
// The system role can never be claimed through a token.
func (s *TokenService) ActorFromToken(tokenString string) (models.Actor, error) {
	if tokenString == "" {
		return models.Actor{}, ErrMissingToken
	}
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return models.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.Actor{}, ErrInvalidToken
	}

	role := models.RoleCustomer
	if raw, ok := claims["role"].(string); ok && raw != "" {
		role = models.Role(raw)
	}
	switch role {
	case models.RoleCustomer, models.RoleRenter, models.RoleAdmin:
	default:
		return models.Actor{}, ErrInvalidToken
	}

	return models.Actor{ID: sub, Role: role}, nil
}
