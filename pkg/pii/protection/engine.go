package protection

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// Config contains configuration for the protection engine.
type Config struct {
	KeyProvider   KeyProvider
	DefaultKeyID  string
	PseudonymSalt string
}

// DefaultConfig returns a config backed by the environment key provider.
func DefaultConfig() *Config {
	return &Config{
		KeyProvider:  NewEnvKeyProvider(""),
		DefaultKeyID: "primary",
	}
}

// Metrics tracks protection engine activity.
type Metrics struct {
	FieldsProtected  atomic.Int64
	FieldsRestored   atomic.Int64
	ProtectionErrors atomic.Int64
}

// transformFunc applies one protection strategy to a single value.
type transformFunc func(tenant, value string) (protected, keyID string, reversible bool, err error)

// Engine applies per-field protection transforms driven by a classification.
// The strategy dispatch table is fixed at construction time.
type Engine struct {
	keyProvider  KeyProvider
	defaultKeyID string
	pseudonymer  *Pseudonymizer
	transforms   map[types.ProtectionStrategy]transformFunc
	tracer       trace.Tracer
	metrics      *Metrics
}

// NewEngine creates a protection engine.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.KeyProvider == nil {
		config.KeyProvider = NewEnvKeyProvider("")
	}
	if config.DefaultKeyID == "" {
		config.DefaultKeyID = "primary"
	}

	engine := &Engine{
		keyProvider:  config.KeyProvider,
		defaultKeyID: config.DefaultKeyID,
		pseudonymer:  NewPseudonymizer(config.PseudonymSalt),
		tracer:       otel.Tracer("pii_protection"),
		metrics:      &Metrics{},
	}

	engine.transforms = map[types.ProtectionStrategy]transformFunc{
		types.StrategyEncrypt:      engine.encryptTransform,
		types.StrategyMask:         maskTransform,
		types.StrategyPseudonymize: engine.pseudonymizeTransform,
		types.StrategyHash:         hashTransform,
		types.StrategyAnonymize:    anonymizeTransform,
	}

	return engine
}

// StrategyFor selects the transform for a field from its category set.
// Categories that require encryption never resolve to a weaker strategy.
func StrategyFor(categories []types.Category) types.ProtectionStrategy {
	contactOnly := len(categories) > 0
	for _, category := range categories {
		switch category {
		case types.CategoryFinancial, types.CategoryHealth, types.CategorySensitive:
			return types.StrategyEncrypt
		case types.CategoryContactInfo:
		default:
			contactOnly = false
		}
	}
	if contactOnly {
		return types.StrategyMask
	}
	return types.StrategyPseudonymize
}

// Protect applies the selected transform to every sensitive field and
// returns the protected record plus one log entry per transformed field.
// Records without PII pass through untouched.
func (e *Engine) Protect(ctx context.Context, record map[string]any, classification *types.Classification) (map[string]any, []types.ProtectionResult, error) {
	_, span := e.tracer.Start(ctx, "protect_record")
	defer span.End()

	if classification == nil || !classification.ContainsPII {
		return record, nil, nil
	}

	protected := copyRecord(record)
	log := make([]types.ProtectionResult, 0, len(classification.Matches))

	for _, match := range classification.Matches {
		value, ok := stringAtPath(protected, match.Path)
		if !ok {
			continue
		}

		strategy := StrategyFor(match.Categories)
		transform := e.transforms[strategy]
		transformed, keyID, reversible, err := transform(classification.Tenant, value)
		if err != nil {
			span.RecordError(err)
			e.metrics.ProtectionErrors.Add(1)
			return nil, nil, fmt.Errorf("failed to protect field %s: %w", match.Path, err)
		}

		if !setAtPath(protected, match.Path, transformed) {
			return nil, nil, fmt.Errorf("failed to write protected value at %s", match.Path)
		}

		e.metrics.FieldsProtected.Add(1)
		log = append(log, types.ProtectionResult{
			Path:           match.Path,
			FieldName:      match.FieldName,
			OriginalValue:  value,
			ProtectedValue: transformed,
			Strategy:       strategy,
			KeyID:          keyID,
			Reversible:     reversible,
			ProtectedAt:    time.Now().UTC(),
		})
	}

	span.SetAttributes(attribute.Int("pii.protected_fields", len(log)))
	return protected, log, nil
}

// Restore decrypts logged encrypt entries back into the record. Entries
// claiming reversibility without an implemented inverse fail with
// ErrUnsupportedReversal; non-reversible entries are left as-is.
func (e *Engine) Restore(ctx context.Context, record map[string]any, log []types.ProtectionResult) (map[string]any, error) {
	_, span := e.tracer.Start(ctx, "restore_record")
	defer span.End()

	restored := copyRecord(record)

	for _, entry := range log {
		switch entry.Strategy {
		case types.StrategyEncrypt:
			value, ok := stringAtPath(restored, entry.Path)
			if !ok || value != entry.ProtectedValue {
				continue
			}
			key, err := e.keyProvider.GetKey(entry.KeyID)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to get key %q: %w", entry.KeyID, err)
			}
			plaintext, err := DecryptValue(value, key)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to restore field %s: %w", entry.Path, err)
			}
			setAtPath(restored, entry.Path, plaintext)
			e.metrics.FieldsRestored.Add(1)

		default:
			if entry.Reversible {
				// Pseudonymization is only reversible through an external
				// mapping table this engine does not maintain.
				return nil, fmt.Errorf("cannot restore field %s (%s): %w", entry.Path, entry.Strategy, ErrUnsupportedReversal)
			}
		}
	}

	return restored, nil
}

// Decrypt decrypts a single encrypted value using the given key id.
func (e *Engine) Decrypt(encoded, keyID string) (string, error) {
	if keyID == "" {
		keyID = e.defaultKeyID
	}
	key, err := e.keyProvider.GetKey(keyID)
	if err != nil {
		return "", fmt.Errorf("failed to get key %q: %w", keyID, err)
	}
	return DecryptValue(encoded, key)
}

// MaskForLog returns a copy of the record with every sensitive field masked.
// The transform is always irreversible and independent of the strategies the
// protection path applies, so key-bearing data can never reach logs.
func (e *Engine) MaskForLog(record map[string]any, classification *types.Classification) map[string]any {
	masked := copyRecord(record)
	if classification == nil {
		return masked
	}
	for _, fieldPath := range classification.SensitiveFields {
		if value, ok := stringAtPath(masked, fieldPath); ok {
			setAtPath(masked, fieldPath, MaskValue(value))
		}
	}
	return masked
}

// Transforms.

func (e *Engine) encryptTransform(_ string, value string) (string, string, bool, error) {
	key, err := e.keyProvider.GetKey(e.defaultKeyID)
	if err != nil {
		return "", "", false, err
	}
	encrypted, err := EncryptValue(value, key)
	if err != nil {
		return "", "", false, err
	}
	return encrypted, e.defaultKeyID, true, nil
}

func maskTransform(_ string, value string) (string, string, bool, error) {
	return MaskValue(value), "", false, nil
}

func (e *Engine) pseudonymizeTransform(tenant, value string) (string, string, bool, error) {
	// Stable for a (tenant, value) pair; reversal needs an external mapping
	// table, which Restore surfaces as an unsupported operation.
	return e.pseudonymer.Token(tenant, value), "", true, nil
}

func hashTransform(_ string, value string) (string, string, bool, error) {
	digest := sha256.Sum256([]byte(value))
	return fmt.Sprintf("sha256:%x", digest[:12]), "", false, nil
}

func anonymizeTransform(_ string, _ string) (string, string, bool, error) {
	return "[REDACTED]", "", false, nil
}

// Record path helpers. Paths use dot/bracket notation, e.g. people[0].email.

func copyRecord(record map[string]any) map[string]any {
	copied := make(map[string]any, len(record))
	for key, value := range record {
		copied[key] = copyValue(value)
	}
	return copied
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyRecord(v)
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = copyValue(item)
		}
		return items
	default:
		return v
	}
}

type pathSegment struct {
	key     string
	indexes []int
}

func parsePath(fieldPath string) ([]pathSegment, error) {
	var segments []pathSegment
	for _, raw := range strings.Split(fieldPath, ".") {
		key := raw
		var indexes []int
		for {
			open := strings.IndexByte(key, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(key[open:], ']')
			if closing < 0 {
				return nil, fmt.Errorf("unbalanced bracket in path %q", fieldPath)
			}
			idx, err := strconv.Atoi(key[open+1 : open+closing])
			if err != nil {
				return nil, fmt.Errorf("invalid index in path %q: %w", fieldPath, err)
			}
			indexes = append(indexes, idx)
			key = key[:open] + key[open+closing+1:]
		}
		segments = append(segments, pathSegment{key: key, indexes: indexes})
	}
	return segments, nil
}

func stringAtPath(record map[string]any, fieldPath string) (string, bool) {
	value, ok := valueAtPath(record, fieldPath)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func valueAtPath(record map[string]any, fieldPath string) (any, bool) {
	segments, err := parsePath(fieldPath)
	if err != nil {
		return nil, false
	}

	var current any = record
	for _, segment := range segments {
		container, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = container[segment.key]
		if !ok {
			return nil, false
		}
		for _, idx := range segment.indexes {
			items, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(items) {
				return nil, false
			}
			current = items[idx]
		}
	}
	return current, true
}

func setAtPath(record map[string]any, fieldPath string, value string) bool {
	segments, err := parsePath(fieldPath)
	if err != nil || len(segments) == 0 {
		return false
	}

	var current any = record
	for i, segment := range segments {
		container, ok := current.(map[string]any)
		if !ok {
			return false
		}
		last := i == len(segments)-1

		if len(segment.indexes) == 0 {
			if last {
				container[segment.key] = value
				return true
			}
			current, ok = container[segment.key]
			if !ok {
				return false
			}
			continue
		}

		next, ok := container[segment.key]
		if !ok {
			return false
		}
		for j, idx := range segment.indexes {
			items, ok := next.([]any)
			if !ok || idx < 0 || idx >= len(items) {
				return false
			}
			if last && j == len(segment.indexes)-1 {
				items[idx] = value
				return true
			}
			next = items[idx]
		}
		current = next
	}
	return false
}
