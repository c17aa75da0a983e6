package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// Verifier authenticates inbound callbacks. It has no side effects.
type Verifier struct{}

// NewVerifier creates a new callback verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks the presented callback secret against the stored one and, only
// when they match, decodes the body with the gateway's processor.
//
// A missing or mismatched secret is an authentication error; the body is not
// looked at. A body that does not decode is a validation error.
func (v *Verifier) Verify(presented, stored string, body []byte, processor ports.Processor) (*domain.Notification, error) {
	if !secretsMatch(presented, stored) {
		return nil, domain.NewServiceError(domain.KindAuthentication, domain.ErrUnauthenticated,
			"spoofed callback", "UNAUTHENTICATED")
	}

	n, err := processor.ParseNotification(body)
	if errors.Is(err, domain.ErrIgnoredNotification) {
		return nil, err
	}
	if err != nil {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrMalformedNotification,
			"unrecognized callback: "+err.Error(), "MALFORMED_NOTIFICATION")
	}
	return n, nil
}

// secretsMatch compares in constant time. Hashing first keeps the comparison
// independent of the presented value's length. An empty stored secret never matches.
func secretsMatch(presented, stored string) bool {
	if stored == "" || presented == "" {
		return false
	}
	p := sha256.Sum256([]byte(presented))
	s := sha256.Sum256([]byte(stored))
	return hmac.Equal(p[:], s[:])
}
