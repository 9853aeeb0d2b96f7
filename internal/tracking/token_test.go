package tracking

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/config"
)

func testTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(config.TrackingConfig{
		Secret:   "test-tracking-secret",
		TokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestIssueValidateRoundTrip(t *testing.T) {
	svc := testTokenService(t)
	quoteID := uuid.New()

	token, err := svc.Issue(quoteID, "customer@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	result := svc.Validate(token)
	if !result.Valid {
		t.Fatalf("expected valid token, got reason %s", result.Reason)
	}
	if result.QuoteID != quoteID {
		t.Fatalf("quote id mismatch: %s vs %s", result.QuoteID, quoteID)
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	svc := testTokenService(t)
	token, err := svc.Issue(uuid.New(), "customer@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	raw, _ := base64.RawURLEncoding.DecodeString(token)
	for _, idx := range []int{0, 20, len(raw) - 1} {
		mutated := append([]byte(nil), raw...)
		mutated[idx] ^= 0x01
		result := svc.Validate(base64.RawURLEncoding.EncodeToString(mutated))
		if result.Valid {
			t.Fatalf("mutated byte %d should invalidate token", idx)
		}
		if result.Reason != ReasonTampered {
			t.Fatalf("mutated byte %d: expected TAMPERED, got %s", idx, result.Reason)
		}
	}
}

func TestValidateRejectsAlteredCharacter(t *testing.T) {
	svc := testTokenService(t)
	token, err := svc.Issue(uuid.New(), "customer@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// replacing a character with a non-base64url byte keeps the length but
	// breaks decoding; that is an alteration, not garbage
	altered := "!" + token[1:]
	result := svc.Validate(altered)
	if result.Valid || result.Reason != ReasonTampered {
		t.Fatalf("expected TAMPERED for altered character, got %+v", result)
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	svc := testTokenService(t)
	for _, token := range []string{"", "???", "dG9vLXNob3J0", base64.RawURLEncoding.EncodeToString(make([]byte, 10))} {
		result := svc.Validate(token)
		if result.Valid || result.Reason != ReasonMalformed {
			t.Fatalf("token %q: expected MALFORMED, got %+v", token, result)
		}
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := testTokenService(t)
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, err := svc.IssueWithTTL(uuid.New(), "customer@example.com", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	result := svc.Validate(token)
	if result.Valid || result.Reason != ReasonExpired {
		t.Fatalf("expected EXPIRED, got %+v", result)
	}
}

func TestValidateRecipientBinding(t *testing.T) {
	svc := testTokenService(t)
	token, err := svc.Issue(uuid.New(), "Customer@Example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// binding is case-insensitive on the email
	if result := svc.ValidateForRecipient(token, "customer@example.com"); !result.Valid {
		t.Fatalf("expected matching recipient to validate, got %s", result.Reason)
	}
	if result := svc.ValidateForRecipient(token, "other@example.com"); result.Valid || result.Reason != ReasonTampered {
		t.Fatalf("expected recipient mismatch to be TAMPERED, got %+v", result)
	}
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	svc := testTokenService(t)
	quoteID := uuid.New()
	a, _ := svc.Issue(quoteID, "customer@example.com")
	b, _ := svc.Issue(quoteID, "customer@example.com")
	if a == b {
		t.Fatalf("nonce should make consecutive tokens distinct")
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService(config.TrackingConfig{}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
