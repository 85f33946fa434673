package protection

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	pseudonymPrefix = "PSN-"
	pseudonymWidth  = 32
)

// Pseudonymizer produces stable opaque tokens for (tenant, value) pairs so
// pseudonymized datasets stay joinable. Reversal requires an external
// mapping table this package does not maintain.
type Pseudonymizer struct {
	salt string
}

// NewPseudonymizer creates a pseudonymizer with the given salt.
func NewPseudonymizer(salt string) *Pseudonymizer {
	return &Pseudonymizer{salt: salt}
}

// Token returns the fixed-width, prefixed, uppercase digest of
// tenant:value:salt. Identical inputs always yield identical tokens.
func (p *Pseudonymizer) Token(tenant, value string) string {
	digest := blake2b.Sum256([]byte(tenant + ":" + value + ":" + p.salt))
	encoded := strings.ToUpper(hex.EncodeToString(digest[:]))
	return pseudonymPrefix + encoded[:pseudonymWidth]
}
