package patterns

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// Matcher detects one kind of sensitive value in a string leaf.
type Matcher interface {
	// Name returns the pattern name.
	Name() string

	// Category returns the PII category this pattern corroborates.
	Category() types.Category

	// Match reports whether the value contains this pattern.
	Match(value string) bool
}

// Registry holds the fixed set of value matchers. The set is resolved at
// construction time; there is no runtime registration of detection logic.
type Registry struct {
	matchers []Matcher
}

// NewRegistry creates a registry with the built-in matchers.
func NewRegistry() *Registry {
	return &Registry{
		matchers: []Matcher{
			NewEmailMatcher(),
			NewPhoneMatcher(),
			NewIPAddressMatcher(),
			NewSSNMatcher(),
			NewCreditCardMatcher(),
			NewBankAccountMatcher(),
			NewZIPCodeMatcher(),
			NewMedicalRecordMatcher(),
			NewDriversLicenseMatcher(),
			NewPassportMatcher(),
		},
	}
}

// All returns the registered matchers in evaluation order.
func (r *Registry) All() []Matcher {
	return r.matchers
}

// MatchAll returns every matcher that fires on the value.
func (r *Registry) MatchAll(value string) []Matcher {
	var fired []Matcher
	for _, m := range r.matchers {
		if m.Match(value) {
			fired = append(fired, m)
		}
	}
	return fired
}

// EmailMatcher detects email addresses.
type EmailMatcher struct {
	pattern *regexp.Regexp
}

func NewEmailMatcher() *EmailMatcher {
	return &EmailMatcher{
		pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	}
}

func (m *EmailMatcher) Name() string { return "email" }
func (m *EmailMatcher) Category() types.Category { return types.CategoryContactInfo }

func (m *EmailMatcher) Match(value string) bool {
	return m.pattern.MatchString(value)
}

// PhoneMatcher detects E.164 and NANP formatted phone numbers.
type PhoneMatcher struct {
	e164 *regexp.Regexp
	nanp *regexp.Regexp
}

func NewPhoneMatcher() *PhoneMatcher {
	return &PhoneMatcher{
		e164: regexp.MustCompile(`^\+[1-9]\d{6,14}$`),
		nanp: regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?[2-9][0-9]{2}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`),
	}
}

func (m *PhoneMatcher) Name() string { return "phone" }
func (m *PhoneMatcher) Category() types.Category { return types.CategoryContactInfo }

func (m *PhoneMatcher) Match(value string) bool {
	trimmed := strings.TrimSpace(value)
	return m.e164.MatchString(trimmed) || m.nanp.MatchString(trimmed)
}

// IPAddressMatcher detects IPv4 and IPv6 addresses.
type IPAddressMatcher struct {
	ipv4 *regexp.Regexp
	ipv6 *regexp.Regexp
}

func NewIPAddressMatcher() *IPAddressMatcher {
	return &IPAddressMatcher{
		ipv4: regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`),
		ipv6: regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{0,4}\b`),
	}
}

func (m *IPAddressMatcher) Name() string { return "ip_address" }
func (m *IPAddressMatcher) Category() types.Category { return types.CategoryContactInfo }

func (m *IPAddressMatcher) Match(value string) bool {
	if candidate := m.ipv4.FindString(value); candidate != "" && isValidIPv4(candidate) {
		return true
	}
	return m.ipv6.MatchString(value) && strings.Count(value, ":") >= 2
}

func isValidIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		num, err := strconv.Atoi(part)
		if err != nil || num < 0 || num > 255 {
			return false
		}
	}
	return true
}

// SSNMatcher detects US Social Security Numbers.
type SSNMatcher struct {
	pattern *regexp.Regexp
}

func NewSSNMatcher() *SSNMatcher {
	// Matches 123-45-6789, 123 45 6789 and 123456789.
	return &SSNMatcher{
		pattern: regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),
	}
}

func (m *SSNMatcher) Name() string { return "ssn" }
func (m *SSNMatcher) Category() types.Category { return types.CategoryPersonalIdentifier }

func (m *SSNMatcher) Match(value string) bool {
	candidate := m.pattern.FindString(value)
	if candidate == "" {
		return false
	}
	digits := stripSeparators(candidate)
	return isValidSSN(digits)
}

func isValidSSN(ssn string) bool {
	if len(ssn) != 9 {
		return false
	}
	// Area cannot be 000, 666 or 900-999; group and serial cannot be all zero.
	first3 := ssn[:3]
	if first3 == "000" || first3 == "666" || first3[0] == '9' {
		return false
	}
	if ssn[3:5] == "00" || ssn[5:] == "0000" {
		return false
	}
	return true
}

// CreditCardMatcher detects Luhn-valid payment card numbers.
type CreditCardMatcher struct {
	pattern *regexp.Regexp
}

func NewCreditCardMatcher() *CreditCardMatcher {
	return &CreditCardMatcher{
		pattern: regexp.MustCompile(`\b\d(?:[\d\-\s]{11,21}\d)\b`),
	}
}

func (m *CreditCardMatcher) Name() string { return "credit_card" }
func (m *CreditCardMatcher) Category() types.Category { return types.CategoryFinancial }

func (m *CreditCardMatcher) Match(value string) bool {
	candidate := m.pattern.FindString(value)
	if candidate == "" {
		return false
	}
	digits := stripSeparators(candidate)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return luhnValid(digits)
}

func luhnValid(number string) bool {
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		digit, err := strconv.Atoi(string(number[i]))
		if err != nil {
			return false
		}
		if alternate {
			digit *= 2
			if digit > 9 {
				digit = (digit % 10) + 1
			}
		}
		sum += digit
		alternate = !alternate
	}
	return sum%10 == 0
}

// BankAccountMatcher detects plain account-number digit runs. This is a
// heuristic: any unbroken 8-17 digit run qualifies, whether or not it passes
// a card checksum.
type BankAccountMatcher struct {
	pattern *regexp.Regexp
}

func NewBankAccountMatcher() *BankAccountMatcher {
	return &BankAccountMatcher{
		pattern: regexp.MustCompile(`\b\d{8,17}\b`),
	}
}

func (m *BankAccountMatcher) Name() string { return "bank_account" }
func (m *BankAccountMatcher) Category() types.Category { return types.CategoryFinancial }

func (m *BankAccountMatcher) Match(value string) bool {
	return m.pattern.MatchString(value)
}

// ZIPCodeMatcher detects US ZIP and ZIP+4 codes.
type ZIPCodeMatcher struct {
	pattern *regexp.Regexp
}

func NewZIPCodeMatcher() *ZIPCodeMatcher {
	return &ZIPCodeMatcher{
		pattern: regexp.MustCompile(`^\d{5}(?:-\d{4})?$`),
	}
}

func (m *ZIPCodeMatcher) Name() string { return "zip_code" }
func (m *ZIPCodeMatcher) Category() types.Category { return types.CategoryContactInfo }

func (m *ZIPCodeMatcher) Match(value string) bool {
	return m.pattern.MatchString(strings.TrimSpace(value))
}

// MedicalRecordMatcher detects medical record number identifiers.
type MedicalRecordMatcher struct {
	pattern *regexp.Regexp
}

func NewMedicalRecordMatcher() *MedicalRecordMatcher {
	return &MedicalRecordMatcher{
		pattern: regexp.MustCompile(`(?i)\bMRN[-:\s]?\d{6,10}\b`),
	}
}

func (m *MedicalRecordMatcher) Name() string { return "medical_record" }
func (m *MedicalRecordMatcher) Category() types.Category { return types.CategoryHealth }

func (m *MedicalRecordMatcher) Match(value string) bool {
	return m.pattern.MatchString(value)
}

// DriversLicenseMatcher detects driving license identifiers.
type DriversLicenseMatcher struct {
	pattern *regexp.Regexp
}

func NewDriversLicenseMatcher() *DriversLicenseMatcher {
	return &DriversLicenseMatcher{
		pattern: regexp.MustCompile(`^[A-Z]{1,2}\d{6,8}$`),
	}
}

func (m *DriversLicenseMatcher) Name() string { return "drivers_license" }
func (m *DriversLicenseMatcher) Category() types.Category { return types.CategoryPersonalIdentifier }

func (m *DriversLicenseMatcher) Match(value string) bool {
	return m.pattern.MatchString(strings.TrimSpace(value))
}

// PassportMatcher detects passport numbers.
type PassportMatcher struct {
	pattern *regexp.Regexp
}

func NewPassportMatcher() *PassportMatcher {
	return &PassportMatcher{
		pattern: regexp.MustCompile(`^[A-Z]\d{8}$`),
	}
}

func (m *PassportMatcher) Name() string { return "passport" }
func (m *PassportMatcher) Category() types.Category { return types.CategoryPersonalIdentifier }

func (m *PassportMatcher) Match(value string) bool {
	return m.pattern.MatchString(strings.TrimSpace(value))
}

func stripSeparators(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, value)
}
