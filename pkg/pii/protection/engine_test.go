package protection

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

type staticKeyProvider struct {
	key []byte
}

func (p staticKeyProvider) GetKey(string) ([]byte, error) {
	return p.key, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(&Config{
		KeyProvider:   staticKeyProvider{key: testKey("engine-test")},
		DefaultKeyID:  "primary",
		PseudonymSalt: "test-salt",
	})
}

func TestStrategyFor(t *testing.T) {
	cases := []struct {
		name       string
		categories []types.Category
		want       types.ProtectionStrategy
	}{
		{"financial", []types.Category{types.CategoryFinancial}, types.StrategyEncrypt},
		{"health", []types.Category{types.CategoryHealth}, types.StrategyEncrypt},
		{"sensitive", []types.Category{types.CategorySensitive}, types.StrategyEncrypt},
		{"contact only", []types.Category{types.CategoryContactInfo}, types.StrategyMask},
		{"personal identifier", []types.Category{types.CategoryPersonalIdentifier}, types.StrategyPseudonymize},
		{"contact plus identifier", []types.Category{types.CategoryContactInfo, types.CategoryPersonalIdentifier}, types.StrategyPseudonymize},
		{"contact plus financial", []types.Category{types.CategoryContactInfo, types.CategoryFinancial}, types.StrategyEncrypt},
		{"empty", nil, types.StrategyPseudonymize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StrategyFor(tc.categories))
		})
	}
}

func TestProtectAppliesStrategiesPerField(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{
		"email":       "user@example.com",
		"card_number": "4111-1111-1111-1111",
		"full_name":   "Jane Roe",
	}
	classification := &types.Classification{
		ContainsPII:     true,
		SensitiveFields: []string{"card_number", "email", "full_name"},
		Tenant:          "tenant-a",
		Matches: []types.MatchDetail{
			{Path: "card_number", FieldName: "card_number", Categories: []types.Category{types.CategoryFinancial}},
			{Path: "email", FieldName: "email", Categories: []types.Category{types.CategoryContactInfo}},
			{Path: "full_name", FieldName: "full_name", Categories: []types.Category{types.CategoryPersonalIdentifier}},
		},
	}

	protected, log, err := engine.Protect(context.Background(), record, classification)
	require.NoError(t, err)
	require.Len(t, log, 3)

	assert.True(t, IsEncryptedValue(protected["card_number"].(string)))
	assert.Equal(t, "****@example.com", protected["email"])
	assert.True(t, strings.HasPrefix(protected["full_name"].(string), "PSN-"))

	// The input record is never mutated.
	assert.Equal(t, "user@example.com", record["email"])
	assert.Equal(t, "4111-1111-1111-1111", record["card_number"])

	byPath := make(map[string]types.ProtectionResult, len(log))
	for _, entry := range log {
		byPath[entry.Path] = entry
	}
	assert.Equal(t, types.StrategyEncrypt, byPath["card_number"].Strategy)
	assert.Equal(t, "primary", byPath["card_number"].KeyID)
	assert.True(t, byPath["card_number"].Reversible)
	assert.Equal(t, types.StrategyMask, byPath["email"].Strategy)
	assert.False(t, byPath["email"].Reversible)
	assert.Equal(t, types.StrategyPseudonymize, byPath["full_name"].Strategy)
}

func TestProtectPassesThroughCleanRecords(t *testing.T) {
	engine := newTestEngine(t)
	record := map[string]any{"status": "active"}

	protected, log, err := engine.Protect(context.Background(), record, &types.Classification{})
	require.NoError(t, err)
	assert.Empty(t, log)
	assert.Equal(t, record, protected)
}

func TestProtectNestedPaths(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{
		"contacts": []any{
			map[string]any{"email": "first@example.com"},
		},
	}
	classification := &types.Classification{
		ContainsPII: true,
		Matches: []types.MatchDetail{
			{Path: "contacts[0].email", FieldName: "email", Categories: []types.Category{types.CategoryContactInfo}},
		},
	}

	protected, log, err := engine.Protect(context.Background(), record, classification)
	require.NoError(t, err)
	require.Len(t, log, 1)

	masked, ok := stringAtPath(protected, "contacts[0].email")
	require.True(t, ok)
	assert.Equal(t, "*****@example.com", masked)
}

func TestRestoreDecryptsEncryptedFields(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{"diagnosis": "type 2 diabetes"}
	classification := &types.Classification{
		ContainsPII: true,
		Matches: []types.MatchDetail{
			{Path: "diagnosis", FieldName: "diagnosis", Categories: []types.Category{types.CategoryHealth}},
		},
	}

	protected, log, err := engine.Protect(context.Background(), record, classification)
	require.NoError(t, err)
	require.True(t, IsEncryptedValue(protected["diagnosis"].(string)))

	restored, err := engine.Restore(context.Background(), protected, log)
	require.NoError(t, err)
	assert.Equal(t, "type 2 diabetes", restored["diagnosis"])
}

func TestRestoreRejectsPseudonymizedFields(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{"full_name": "Jane Roe"}
	classification := &types.Classification{
		ContainsPII: true,
		Matches: []types.MatchDetail{
			{Path: "full_name", FieldName: "full_name", Categories: []types.Category{types.CategoryPersonalIdentifier}},
		},
	}

	protected, log, err := engine.Protect(context.Background(), record, classification)
	require.NoError(t, err)

	_, err = engine.Restore(context.Background(), protected, log)
	assert.ErrorIs(t, err, ErrUnsupportedReversal)
}

func TestRestoreSkipsIrreversibleEntries(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{"email": "****@example.com"}
	log := []types.ProtectionResult{
		{Path: "email", FieldName: "email", ProtectedValue: "****@example.com", Strategy: types.StrategyMask, Reversible: false},
	}

	restored, err := engine.Restore(context.Background(), record, log)
	require.NoError(t, err)
	assert.Equal(t, "****@example.com", restored["email"])
}

func TestRestoreSkipsMismatchedValues(t *testing.T) {
	engine := newTestEngine(t)

	// The field was overwritten since protection; the log entry no longer
	// matches and must be ignored rather than decrypted blind.
	record := map[string]any{"diagnosis": "edited afterwards"}
	log := []types.ProtectionResult{
		{Path: "diagnosis", ProtectedValue: "enc:gcm:stale:stale:stale", Strategy: types.StrategyEncrypt, KeyID: "primary", Reversible: true},
	}

	restored, err := engine.Restore(context.Background(), record, log)
	require.NoError(t, err)
	assert.Equal(t, "edited afterwards", restored["diagnosis"])
}

func TestDecryptSingleValue(t *testing.T) {
	engine := newTestEngine(t)

	encoded, err := EncryptValue("secret", testKey("engine-test"))
	require.NoError(t, err)

	decoded, err := engine.Decrypt(encoded, "")
	require.NoError(t, err)
	assert.Equal(t, "secret", decoded)
}

func TestMaskForLogMasksAllSensitiveFields(t *testing.T) {
	engine := newTestEngine(t)

	record := map[string]any{
		"email":     "user@example.com",
		"diagnosis": "type 2 diabetes",
		"status":    "active",
	}
	classification := &types.Classification{
		ContainsPII:     true,
		SensitiveFields: []string{"email", "diagnosis"},
	}

	masked := engine.MaskForLog(record, classification)
	assert.Equal(t, "****@example.com", masked["email"])
	assert.Equal(t, "t*************s", masked["diagnosis"])
	assert.Equal(t, "active", masked["status"])
	assert.Equal(t, "user@example.com", record["email"])
}

func TestPseudonymizerTokens(t *testing.T) {
	p := NewPseudonymizer("salt")

	token := p.Token("tenant-a", "jane@example.com")
	assert.True(t, strings.HasPrefix(token, "PSN-"))
	assert.Len(t, token, len("PSN-")+32)
	assert.Equal(t, strings.ToUpper(token), token)

	// Stable for the same pair, distinct across tenants, values and salts.
	assert.Equal(t, token, p.Token("tenant-a", "jane@example.com"))
	assert.NotEqual(t, token, p.Token("tenant-b", "jane@example.com"))
	assert.NotEqual(t, token, p.Token("tenant-a", "john@example.com"))
	assert.NotEqual(t, token, NewPseudonymizer("other").Token("tenant-a", "jane@example.com"))
}
