package domain

import (
	"strings"
	"time"
)

const MaxExternalRefLength = 64

// Patient is the privacy-safe identity anchor for a prediction history.
// It carries an opaque dataset reference only; never add demographic fields here.
type Patient struct {
	ID          int64     `json:"id"`
	ExternalRef string    `json:"external_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeExternalRef trims the reference and checks its length.
func NormalizeExternalRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrMissingExternalRef
	}
	if len(ref) > MaxExternalRefLength {
		return "", ErrInvalidExternalRef
	}
	return ref, nil
}
