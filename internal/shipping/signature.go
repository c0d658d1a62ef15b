package shipping

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrSignatureMissing = errors.New("webhook signature missing")
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// SignatureVerifier checks carrier webhook HMAC-SHA256 signatures.
type SignatureVerifier struct {
	secretFor func(carrier string) string
}

// NewSignatureVerifier builds a verifier that looks up secrets per carrier.
func NewSignatureVerifier(secretFor func(carrier string) string) *SignatureVerifier {
	if secretFor == nil {
		secretFor = func(string) string { return "" }
	}
	return &SignatureVerifier{secretFor: secretFor}
}

// Verify reports whether the body was signed. It returns false and no error
// when the carrier has no secret configured.
func (v *SignatureVerifier) Verify(carrier string, header http.Header, body []byte) (bool, error) {
	secret := v.secretFor(carrier)
	if secret == "" {
		return false, nil
	}
	provided := signatureHeader(carrier, header)
	if provided == "" {
		return false, ErrSignatureMissing
	}
	provided = strings.TrimPrefix(strings.TrimSpace(provided), "sha256=")
	got, err := hex.DecodeString(provided)
	if err != nil {
		return false, ErrSignatureInvalid
	}
	if !hmac.Equal(got, Sign(secret, body)) {
		return false, ErrSignatureInvalid
	}
	return true, nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func signatureHeader(carrier string, header http.Header) string {
	slug := strings.ToLower(strings.TrimSpace(carrier))
	if slug != "" {
		if value := header.Get("x-" + slug + "-signature"); value != "" {
			return value
		}
	}
	return header.Get("x-signature")
}
