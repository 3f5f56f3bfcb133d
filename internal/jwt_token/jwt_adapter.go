package jwttoken

import (
	"ledger/pkg/platform/middleware/actor"
)

func ToMiddlewareClaims(claims *Claims) *actor.Claims {
	name := claims.Name
	if name == "" {
		name = claims.UserID
	}
	return &actor.Claims{
		UserID:   claims.UserID,
		UserName: name,
	}
}

// JWTServiceAdapter exposes JWTService as the actor middleware's validator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*actor.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
