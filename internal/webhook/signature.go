// Package webhook authenticates GitHub webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// SignatureHeader carries the HMAC-SHA256 of the raw request body
	SignatureHeader = "X-Hub-Signature-256"
	// EventHeader names the event type of a delivery
	EventHeader = "X-GitHub-Event"
	// DeliveryHeader is the unique id of a delivery
	DeliveryHeader = "X-GitHub-Delivery"

	signaturePrefix = "sha256="
)

var (
	// ErrMissingSignature is returned when the delivery is unsigned
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrUnsupportedSignature is returned for signatures other than sha256=<hex>
	ErrUnsupportedSignature = errors.New("unsupported webhook signature format")

	// ErrInvalidSignature is returned when the signature does not match the payload
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Sign returns the header value GitHub would send for payload
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of payload keyed
// with secret. The comparison is constant time.
func VerifySignature(secret, payload []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	hexSig, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrUnsupportedSignature
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
