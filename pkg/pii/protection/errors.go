package protection

import "errors"

var (
	// ErrMalformedPayload indicates an encrypted value that does not parse:
	// wrong part count, bad prefix or truncated base64.
	ErrMalformedPayload = errors.New("malformed encrypted payload")

	// ErrDecryptionFailed indicates authentication-tag verification failure.
	// Decryption fails closed; no partial plaintext is ever returned.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrUnsupportedReversal indicates an attempt to reverse a transform
	// that has no implemented inverse (mask, hash, anonymize, or
	// pseudonymization without an external mapping table).
	ErrUnsupportedReversal = errors.New("unsupported reversal")
)
