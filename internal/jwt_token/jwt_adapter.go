package jwttoken

import (
	"rostertrail/internal/platform/middleware"
)

// JWTServiceAdapter narrows JWTService to the middleware's validator
// contract.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}
