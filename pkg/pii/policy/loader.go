package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// LoadBundle reads a policy bundle from a YAML or JSON file, validates it and
// returns it ready for registration.
func LoadBundle(configPath string) (types.PolicyBundle, error) {
	var bundle types.PolicyBundle

	data, err := os.ReadFile(configPath)
	if err != nil {
		return bundle, fmt.Errorf("failed to read policy bundle %s: %w", configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &bundle); err != nil {
			return bundle, fmt.Errorf("failed to parse YAML policy bundle %s: %w", configPath, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &bundle); err != nil {
			return bundle, fmt.Errorf("failed to parse JSON policy bundle %s: %w", configPath, err)
		}
	default:
		return bundle, fmt.Errorf("unsupported policy bundle format: %s (supported: .yaml, .yml, .json)", ext)
	}

	if err := ValidateBundle(&bundle); err != nil {
		return bundle, fmt.Errorf("invalid policy bundle %s: %w", configPath, err)
	}

	return bundle, nil
}

// ValidateBundle checks a bundle for structural problems before registration.
func ValidateBundle(bundle *types.PolicyBundle) error {
	if bundle.Domain == "" {
		return fmt.Errorf("policy bundle must declare a domain")
	}

	for _, rule := range bundle.PathRules {
		if rule.Match == "" {
			return fmt.Errorf("path rule has empty match pattern")
		}
		if _, err := path.Match(rule.Match, "probe"); err != nil {
			return fmt.Errorf("path rule %q has invalid glob pattern: %w", rule.Match, err)
		}
		if rule.Action != types.RuleActionPII && rule.Action != types.RuleActionNonPII {
			return fmt.Errorf("path rule %q has unknown action %q", rule.Match, rule.Action)
		}
		if rule.Category != "" && !knownCategory(rule.Category) {
			return fmt.Errorf("path rule %q has unknown category %q", rule.Match, rule.Category)
		}
	}

	for _, hint := range bundle.FieldHints {
		if hint.Path == "" {
			return fmt.Errorf("field hint has empty path")
		}
		if hint.Category != "" && !knownCategory(hint.Category) {
			return fmt.Errorf("field hint %q has unknown category %q", hint.Path, hint.Category)
		}
	}

	for category, strategy := range bundle.Protection {
		if !knownCategory(category) {
			return fmt.Errorf("protection map has unknown category %q", category)
		}
		switch strategy {
		case types.StrategyEncrypt, types.StrategyMask, types.StrategyPseudonymize,
			types.StrategyHash, types.StrategyAnonymize:
		default:
			return fmt.Errorf("protection map has unknown strategy %q for category %q", strategy, category)
		}
	}

	return nil
}

func knownCategory(c types.Category) bool {
	switch c {
	case types.CategoryPersonalIdentifier, types.CategoryContactInfo,
		types.CategoryFinancial, types.CategoryHealth, types.CategorySensitive:
		return true
	}
	return false
}
