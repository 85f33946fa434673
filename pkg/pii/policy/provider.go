package policy

import (
	"path"
	"strings"
	"sync"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// baselineKeywords is the keyword set applied to every domain. Domain bundles
// extend or exclude from it but never replace it outright.
var baselineKeywords = []string{
	"name", "firstname", "lastname", "surname", "fullname",
	"email", "e-mail", "phone", "mobile", "fax",
	"address", "street", "city", "zip", "postal",
	"ssn", "social security", "national id", "tax id",
	"passport", "license", "drivers license",
	"dob", "date of birth", "birthdate",
	"credit card", "card number", "cvv", "iban", "account number",
	"routing", "salary", "income",
	"medical", "diagnosis", "prescription", "patient",
	"password", "secret",
}

// Registry holds registered per-domain policy bundles. Registration is a
// last-write-wins side effect and must complete before the first
// classification of a domain; callers confine writes to single-threaded
// startup.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]types.PolicyBundle
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{
		bundles: make(map[string]types.PolicyBundle),
	}
}

// Register stores a domain policy bundle, replacing any previous bundle
// registered under the same (domain, tenant) key.
func (r *Registry) Register(bundle types.PolicyBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[bundleKey(bundle.Domain, bundle.Tenant)] = bundle
}

// Lookup returns the bundle for (domain, tenant). A tenant-specific bundle
// takes precedence over a domain-wide one.
func (r *Registry) Lookup(domain, tenant string) (types.PolicyBundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if tenant != "" {
		if bundle, ok := r.bundles[bundleKey(domain, tenant)]; ok {
			return bundle, true
		}
	}
	bundle, ok := r.bundles[bundleKey(domain, "")]
	return bundle, ok
}

// Domains returns the registered domain keys.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.bundles))
	for key := range r.bundles {
		domains = append(domains, key)
	}
	return domains
}

func bundleKey(domain, tenant string) string {
	if tenant == "" {
		return domain
	}
	return domain + ":" + tenant
}

// Provider resolves effective policy bundles from a registry plus the
// baseline keyword set.
type Provider struct {
	registry *Registry
}

// NewProvider creates a policy provider backed by the given registry.
func NewProvider(registry *Registry) *Provider {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Provider{registry: registry}
}

// Registry returns the backing registry.
func (p *Provider) Registry() *Registry {
	return p.registry
}

// GetPolicy resolves the effective bundle for (domain, tenant). When no
// domain bundle is registered it returns the baseline keywords with empty
// hints and rules. Otherwise the effective include list is
// (baseline + domain include) minus the domain exclude list; field hints and
// path rules pass through unmerged.
func (p *Provider) GetPolicy(domain, tenant string) types.PolicyBundle {
	registered, ok := p.registry.Lookup(domain, tenant)
	if !ok {
		return types.PolicyBundle{
			Domain:          domain,
			Tenant:          tenant,
			IncludeKeywords: append([]string(nil), baselineKeywords...),
		}
	}

	excluded := make(map[string]bool, len(registered.ExcludeKeywords))
	for _, kw := range registered.ExcludeKeywords {
		excluded[strings.ToLower(kw)] = true
	}

	seen := make(map[string]bool)
	include := make([]string, 0, len(baselineKeywords)+len(registered.IncludeKeywords))
	for _, kw := range baselineKeywords {
		normalized := strings.ToLower(kw)
		if !excluded[normalized] && !seen[normalized] {
			include = append(include, normalized)
			seen[normalized] = true
		}
	}
	for _, kw := range registered.IncludeKeywords {
		normalized := strings.ToLower(kw)
		if !excluded[normalized] && !seen[normalized] {
			include = append(include, normalized)
			seen[normalized] = true
		}
	}

	return types.PolicyBundle{
		Domain:          domain,
		Tenant:          tenant,
		IncludeKeywords: include,
		ExcludeKeywords: append([]string(nil), registered.ExcludeKeywords...),
		FieldHints:      append([]types.FieldHint(nil), registered.FieldHints...),
		PathRules:       append([]types.PathRule(nil), registered.PathRules...),
		Protection:      registered.Protection,
	}
}

// MatchPathRule evaluates the bundle's path rules against a field path,
// case-insensitively, returning the first matching rule.
func MatchPathRule(bundle *types.PolicyBundle, fieldPath string) (types.PathRule, bool) {
	lowered := strings.ToLower(fieldPath)
	for _, rule := range bundle.PathRules {
		matched, err := path.Match(strings.ToLower(rule.Match), lowered)
		if err != nil {
			continue
		}
		if matched || strings.ToLower(rule.Match) == lowered {
			return rule, true
		}
	}
	return types.PathRule{}, false
}

// HintForPath returns the explicit field hint for an exact path, if any.
func HintForPath(bundle *types.PolicyBundle, fieldPath string) (types.FieldHint, bool) {
	for _, hint := range bundle.FieldHints {
		if strings.EqualFold(hint.Path, fieldPath) {
			return hint, true
		}
	}
	return types.FieldHint{}, false
}
