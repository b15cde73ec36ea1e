package jwttoken

import (
	"warden/internal/platform/middleware"
)

// Validator adapts JWTService to the middleware's validator boundary.
type Validator struct {
	svc *JWTService
}

func NewValidator(svc *JWTService) *Validator {
	return &Validator{svc: svc}
}

func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.svc.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.UserID, Admin: claims.Admin}, nil
}
