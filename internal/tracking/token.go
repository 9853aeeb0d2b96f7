package tracking

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlastravel/backoffice-backend/pkg/config"
)

// Reason explains why a token failed validation. The reason is for internal
// audit logging only; customers are never shown token errors.
type Reason string

const (
	ReasonMalformed Reason = "MALFORMED"
	ReasonTampered  Reason = "TAMPERED"
	ReasonExpired   Reason = "EXPIRED"
)

const (
	payloadLen = 16 + 8 + 8 + 8 + 8 // quote id, issued at, expires at, nonce, recipient hash
	sigLen     = sha256.Size
	tokenLen   = payloadLen + sigLen
)

// Validation is the outcome of checking a click token.
type Validation struct {
	Valid   bool
	QuoteID uuid.UUID
	Reason  Reason
}

// TokenService issues and validates the signed, self-contained identifiers
// embedded in outbound quote emails. A token carries the quote id, an expiry
// and a recipient binding, so inbound clicks need no session and no database
// round trip to be authenticated as "this quote, this recipient, still fresh".
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds the token service from tracking configuration.
func NewTokenService(cfg config.TrackingConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("tracking secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints a token for the quote bound to the recipient email, valid for
// the configured TTL.
func (s *TokenService) Issue(quoteID uuid.UUID, recipient string) (string, error) {
	return s.IssueWithTTL(quoteID, recipient, s.ttl)
}

// IssueWithTTL mints a token with an explicit validity window.
func (s *TokenService) IssueWithTTL(quoteID uuid.UUID, recipient string, ttl time.Duration) (string, error) {
	if quoteID == uuid.Nil {
		return "", fmt.Errorf("quote id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}

	now := s.now()
	payload := make([]byte, payloadLen)
	copy(payload[0:16], quoteID[:])
	binary.BigEndian.PutUint64(payload[16:24], uint64(now.Unix()))
	binary.BigEndian.PutUint64(payload[24:32], uint64(now.Add(ttl).Unix()))
	if _, err := rand.Read(payload[32:40]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	copy(payload[40:48], recipientDigest(recipient))

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	token := append(payload, mac.Sum(nil)...)

	return base64.RawURLEncoding.EncodeToString(token), nil
}

// Validate checks a token with no recipient binding. Checks run in order:
// structure, signature, expiry. It never returns an error; a bad token is a
// Validation with Valid=false and a reason.
func (s *TokenService) Validate(token string) Validation {
	return s.ValidateForRecipient(token, "")
}

// ValidateForRecipient additionally verifies the recipient binding when a
// recipient is supplied. A binding mismatch is reported as TAMPERED so the
// audit trail does not distinguish a forged binding from a forged signature.
func (s *TokenService) ValidateForRecipient(token, recipient string) Validation {
	trimmed := strings.TrimSpace(token)
	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		// a right-length token that no longer decodes had a character
		// altered; only wrong-length garbage counts as malformed
		if len(trimmed) == base64.RawURLEncoding.EncodedLen(tokenLen) {
			return Validation{Reason: ReasonTampered}
		}
		return Validation{Reason: ReasonMalformed}
	}
	if len(raw) != tokenLen {
		return Validation{Reason: ReasonMalformed}
	}

	payload, sig := raw[:payloadLen], raw[payloadLen:]
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return Validation{Reason: ReasonTampered}
	}

	expiresAt := time.Unix(int64(binary.BigEndian.Uint64(payload[24:32])), 0)
	if s.now().After(expiresAt) {
		return Validation{Reason: ReasonExpired}
	}

	if recipient != "" {
		if subtle.ConstantTimeCompare(payload[40:48], recipientDigest(recipient)) != 1 {
			return Validation{Reason: ReasonTampered}
		}
	}

	quoteID, err := uuid.FromBytes(payload[0:16])
	if err != nil || quoteID == uuid.Nil {
		return Validation{Reason: ReasonMalformed}
	}

	return Validation{Valid: true, QuoteID: quoteID}
}

func recipientDigest(recipient string) []byte {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(recipient))))
	return sum[:8]
}
