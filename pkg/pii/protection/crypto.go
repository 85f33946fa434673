package protection

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

const (
	// Wire format: enc:gcm:<nonce-b64>:<ciphertext-b64>:<tag-b64>.
	// Persistence layers treat the whole string as opaque.
	wirePrefix    = "enc"
	wireAlgorithm = "gcm"
	wireParts     = 5

	gcmNonceSize = 12
	gcmTagSize   = 16
	keySize      = 32
)

// KeyProvider supplies 256-bit keys for field encryption.
type KeyProvider interface {
	// GetKey returns the 32-byte key for keyID. An empty keyID selects the
	// provider's default key.
	GetKey(keyID string) ([]byte, error)
}

// EnvKeyProvider derives keys from an environment-sourced secret via a
// one-way SHA-256 digest. This is deliberately not a salted KDF; hardening
// the derivation is tracked separately and must not change silently.
type EnvKeyProvider struct {
	envVar string
}

// DefaultKeyEnvVar is the environment variable the default provider reads.
const DefaultKeyEnvVar = "PRIVACYGUARD_MASTER_SECRET"

// NewEnvKeyProvider creates a provider reading the secret from envVar,
// falling back to DefaultKeyEnvVar when empty.
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	if envVar == "" {
		envVar = DefaultKeyEnvVar
	}
	return &EnvKeyProvider{envVar: envVar}
}

// GetKey derives the key for keyID from the configured secret.
func (p *EnvKeyProvider) GetKey(keyID string) ([]byte, error) {
	secret := os.Getenv(p.envVar)
	if secret == "" {
		return nil, fmt.Errorf("encryption secret not set: %s", p.envVar)
	}

	material := secret
	if keyID != "" {
		material = secret + ":" + keyID
	}
	digest := sha256.Sum256([]byte(material))
	return digest[:], nil
}

// EncryptValue encrypts a field value with AES-256-GCM under a fresh
// cryptographically random 96-bit nonce and serializes it in the wire format.
func EncryptValue(value string, key []byte) (string, error) {
	if len(key) != keySize {
		return "", fmt.Errorf("invalid key length: got %d, want %d", len(key), keySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(value), nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		wirePrefix,
		wireAlgorithm,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}, ":"), nil
}

// DecryptValue parses the wire format and decrypts. Any tampering with the
// nonce, ciphertext or tag fails closed with ErrDecryptionFailed; structural
// problems fail with ErrMalformedPayload.
func DecryptValue(encoded string, key []byte) (string, error) {
	nonce, ciphertext, tag, err := parseWireFormat(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication tag mismatch", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

// IsEncryptedValue reports whether a string carries the encrypted wire prefix.
func IsEncryptedValue(value string) bool {
	return strings.HasPrefix(value, wirePrefix+":"+wireAlgorithm+":")
}

func parseWireFormat(encoded string) (nonce, ciphertext, tag []byte, err error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != wireParts {
		return nil, nil, nil, fmt.Errorf("%w: expected %d parts, got %d", ErrMalformedPayload, wireParts, len(parts))
	}
	if parts[0] != wirePrefix || parts[1] != wireAlgorithm {
		return nil, nil, nil, fmt.Errorf("%w: unexpected prefix %s:%s", ErrMalformedPayload, parts[0], parts[1])
	}

	nonce, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: invalid nonce encoding", ErrMalformedPayload)
	}
	if len(nonce) != gcmNonceSize {
		return nil, nil, nil, fmt.Errorf("%w: invalid nonce length %d", ErrMalformedPayload, len(nonce))
	}

	ciphertext, err = base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedPayload)
	}

	tag, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: invalid tag encoding", ErrMalformedPayload)
	}
	if len(tag) != gcmTagSize {
		return nil, nil, nil, fmt.Errorf("%w: invalid tag length %d", ErrMalformedPayload, len(tag))
	}

	return nonce, ciphertext, tag, nil
}
