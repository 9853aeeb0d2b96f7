package auth

import (
	"testing"
	"time"

	"github.com/atlastravel/backoffice-backend/pkg/config"
	"github.com/atlastravel/backoffice-backend/pkg/enums"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "atlastravel-test",
		ExpirationMinutes: 15,
	}
}

func adminPayload() AccessTokenPayload {
	return AccessTokenPayload{
		UserID:             uuid.New(),
		Email:              "admin@atlastravel.example",
		Role:               enums.MemberRoleAdmin,
		IsApproved:         true,
		RegistrationStatus: enums.RegistrationStatusApproved,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	payload := adminPayload()

	token, err := MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != payload.UserID {
		t.Fatalf("user id mismatch")
	}
	if claims.Role != enums.MemberRoleAdmin || !claims.IsApproved {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), adminPayload())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), adminPayload())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestMintRejectsInvalidRole(t *testing.T) {
	payload := adminPayload()
	payload.Role = enums.MemberRole("owner")
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), payload); err == nil {
		t.Fatalf("expected role validation failure")
	}
}
