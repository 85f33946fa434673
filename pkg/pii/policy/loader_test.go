package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

func writeBundleFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadBundleYAML(t *testing.T) {
	path := writeBundleFile(t, "crm.yaml", `
domain: crm
include_keywords:
  - customer_ref
exclude_keywords:
  - salary
field_hints:
  - path: notes
    sensitive: true
    category: health
path_rules:
  - match: "internal.*"
    action: nonpii
protection:
  financial: encrypt
`)

	bundle, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "crm", bundle.Domain)
	assert.Equal(t, []string{"customer_ref"}, bundle.IncludeKeywords)
	require.Len(t, bundle.FieldHints, 1)
	assert.Equal(t, types.CategoryHealth, bundle.FieldHints[0].Category)
	require.Len(t, bundle.PathRules, 1)
	assert.Equal(t, types.RuleActionNonPII, bundle.PathRules[0].Action)
	assert.Equal(t, types.StrategyEncrypt, bundle.Protection[types.CategoryFinancial])
}

func TestLoadBundleJSON(t *testing.T) {
	path := writeBundleFile(t, "billing.json", `{
  "domain": "billing",
  "include_keywords": ["invoice_ref"],
  "path_rules": [{"match": "customer.ssn", "action": "pii", "category": "personal_identifier"}]
}`)

	bundle, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "billing", bundle.Domain)
	require.Len(t, bundle.PathRules, 1)
	assert.Equal(t, types.CategoryPersonalIdentifier, bundle.PathRules[0].Category)
}

func TestLoadBundleRejectsUnknownExtension(t *testing.T) {
	path := writeBundleFile(t, "crm.toml", `domain = "crm"`)

	_, err := LoadBundle(path)
	assert.ErrorContains(t, err, "unsupported policy bundle format")
}

func TestLoadBundleMissingFile(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateBundle(t *testing.T) {
	cases := []struct {
		name    string
		bundle  types.PolicyBundle
		wantErr string
	}{
		{
			name:    "missing domain",
			bundle:  types.PolicyBundle{},
			wantErr: "must declare a domain",
		},
		{
			name: "empty rule match",
			bundle: types.PolicyBundle{
				Domain:    "crm",
				PathRules: []types.PathRule{{Action: types.RuleActionPII}},
			},
			wantErr: "empty match pattern",
		},
		{
			name: "bad glob",
			bundle: types.PolicyBundle{
				Domain:    "crm",
				PathRules: []types.PathRule{{Match: "customer.[", Action: types.RuleActionPII}},
			},
			wantErr: "invalid glob",
		},
		{
			name: "unknown rule action",
			bundle: types.PolicyBundle{
				Domain:    "crm",
				PathRules: []types.PathRule{{Match: "customer.*", Action: "maybe"}},
			},
			wantErr: "unknown action",
		},
		{
			name: "unknown rule category",
			bundle: types.PolicyBundle{
				Domain:    "crm",
				PathRules: []types.PathRule{{Match: "customer.*", Action: types.RuleActionPII, Category: "secrets"}},
			},
			wantErr: "unknown category",
		},
		{
			name: "empty hint path",
			bundle: types.PolicyBundle{
				Domain:     "crm",
				FieldHints: []types.FieldHint{{Sensitive: true}},
			},
			wantErr: "empty path",
		},
		{
			name: "unknown protection strategy",
			bundle: types.PolicyBundle{
				Domain:     "crm",
				Protection: map[types.Category]types.ProtectionStrategy{types.CategoryFinancial: "scramble"},
			},
			wantErr: "unknown strategy",
		},
		{
			name: "valid",
			bundle: types.PolicyBundle{
				Domain:     "crm",
				PathRules:  []types.PathRule{{Match: "customer.*", Action: types.RuleActionPII}},
				FieldHints: []types.FieldHint{{Path: "notes", Sensitive: true}},
				Protection: map[types.Category]types.ProtectionStrategy{types.CategoryHealth: types.StrategyEncrypt},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBundle(&tc.bundle)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
