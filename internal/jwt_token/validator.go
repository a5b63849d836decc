package jwttoken

import (
	"oidcbridge/internal/platform/middleware"
)

// Validator adapts JWTService to the middleware.JWTValidator interface.
type Validator struct {
	svc *JWTService
}

func NewValidator(svc *JWTService) Validator {
	return Validator{svc: svc}
}

func (v Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
	}, nil
}
