package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

func TestEmailMatcher(t *testing.T) {
	m := NewEmailMatcher()

	assert.True(t, m.Match("user@example.com"))
	assert.True(t, m.Match("a@b.com"))
	assert.True(t, m.Match("contact me at test.email@domain.org please"))
	assert.False(t, m.Match("not-an-email"))
	assert.False(t, m.Match("user@"))
	assert.Equal(t, types.CategoryContactInfo, m.Category())
}

func TestPhoneMatcher(t *testing.T) {
	m := NewPhoneMatcher()

	assert.True(t, m.Match("+14155552671"))
	assert.True(t, m.Match("(555) 123-4567"))
	assert.True(t, m.Match("555-123-4567"))
	assert.True(t, m.Match("+1-555-123-4567"))
	assert.False(t, m.Match("hello"))
	assert.Equal(t, types.CategoryContactInfo, m.Category())
}

func TestIPAddressMatcher(t *testing.T) {
	m := NewIPAddressMatcher()

	assert.True(t, m.Match("192.168.1.1"))
	assert.True(t, m.Match("connection from 10.0.0.1 refused"))
	assert.True(t, m.Match("2001:db8:85a3::8a2e:370:7334"))
	assert.False(t, m.Match("999.999.999.999"))
	assert.False(t, m.Match("plain text"))
}

func TestSSNMatcher(t *testing.T) {
	m := NewSSNMatcher()

	assert.True(t, m.Match("123-45-6789"))
	assert.True(t, m.Match("123 45 6789"))
	assert.True(t, m.Match("123456789"))

	// Invalid area, group and serial components are rejected.
	assert.False(t, m.Match("000-45-6789"))
	assert.False(t, m.Match("666-45-6789"))
	assert.False(t, m.Match("923-45-6789"))
	assert.False(t, m.Match("123-00-6789"))
	assert.False(t, m.Match("123-45-0000"))

	assert.Equal(t, types.CategoryPersonalIdentifier, m.Category())
}

func TestCreditCardMatcherLuhnGate(t *testing.T) {
	m := NewCreditCardMatcher()

	// Luhn-valid test numbers.
	assert.True(t, m.Match("4111111111111111"))
	assert.True(t, m.Match("4111-1111-1111-1111"))
	assert.True(t, m.Match("5555 5555 5555 4444"))

	// A 16-digit run failing the Luhn checksum must not match the credit
	// card pattern.
	assert.False(t, m.Match("1234567890123456"))
	assert.False(t, m.Match("4111111111111112"))
}

func TestBankAccountMatcherIgnoresChecksum(t *testing.T) {
	m := NewBankAccountMatcher()

	// Digit runs match regardless of card checksums.
	assert.True(t, m.Match("1234567890123456"))
	assert.True(t, m.Match("12345678"))
	assert.False(t, m.Match("1234567"))
	assert.Equal(t, types.CategoryFinancial, m.Category())
}

func TestZIPCodeMatcher(t *testing.T) {
	m := NewZIPCodeMatcher()

	assert.True(t, m.Match("94103"))
	assert.True(t, m.Match("94103-1234"))
	assert.False(t, m.Match("941"))
	assert.False(t, m.Match("94103 Market St"))
}

func TestMedicalRecordMatcher(t *testing.T) {
	m := NewMedicalRecordMatcher()

	assert.True(t, m.Match("MRN-1234567"))
	assert.True(t, m.Match("mrn 1234567"))
	assert.False(t, m.Match("1234567"))
	assert.Equal(t, types.CategoryHealth, m.Category())
}

func TestDocumentNumberMatchers(t *testing.T) {
	dl := NewDriversLicenseMatcher()
	assert.True(t, dl.Match("D1234567"))
	assert.True(t, dl.Match("AB123456"))
	assert.False(t, dl.Match("drivers license"))

	passport := NewPassportMatcher()
	assert.True(t, passport.Match("A12345678"))
	assert.False(t, passport.Match("12345678"))
}

func TestRegistryMatchAll(t *testing.T) {
	registry := NewRegistry()

	fired := registry.MatchAll("user@example.com")
	names := make([]string, 0, len(fired))
	for _, m := range fired {
		names = append(names, m.Name())
	}
	assert.Contains(t, names, "email")
	assert.NotContains(t, names, "credit_card")

	assert.Empty(t, registry.MatchAll("no pii here"))
}
