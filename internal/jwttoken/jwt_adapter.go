package jwttoken

import (
	"sanitrack/internal/platform/middleware"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
)

// ToMiddlewareClaims converts token claims into the shape the auth
// middleware injects into request context.
func ToMiddlewareClaims(claims *Claims) (*middleware.JWTClaims, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return &middleware.JWTClaims{
		UserID: userID,
		Role:   claims.Role,
	}, nil
}

// JWTServiceAdapter bridges JWTService to the middleware's validator
// interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
