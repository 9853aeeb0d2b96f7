package auth

import (
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID             uuid.UUID
	Email              string
	Role               enums.MemberRole
	IsApproved         bool
	RegistrationStatus enums.RegistrationStatus
}

// AccessTokenClaims represents the typed JWT issued to back-office staff.
type AccessTokenClaims struct {
	UserID             uuid.UUID                `json:"user_id"`
	Email              string                   `json:"email"`
	Role               enums.MemberRole         `json:"role"`
	IsApproved         bool                     `json:"is_approved"`
	RegistrationStatus enums.RegistrationStatus `json:"registration_status"`
	jwt.RegisteredClaims
}
