package types

import (
	"time"

	"github.com/google/uuid"
)

// Category represents a class of personally identifiable information.
type Category string

const (
	CategoryPersonalIdentifier Category = "personal_identifier"
	CategoryContactInfo        Category = "contact_info"
	CategoryFinancial          Category = "financial"
	CategoryHealth             Category = "health"
	CategorySensitive          Category = "sensitive"
)

// ConfidentialityLevel represents the handling tier assigned to a record.
type ConfidentialityLevel string

const (
	ConfidentialityPublic       ConfidentialityLevel = "public"
	ConfidentialityInternal     ConfidentialityLevel = "internal"
	ConfidentialityConfidential ConfidentialityLevel = "confidential"
	ConfidentialityRestricted   ConfidentialityLevel = "restricted"
)

// DetectorKind identifies which detection stage produced a match.
type DetectorKind string

const (
	DetectorPathRule  DetectorKind = "path_rule"
	DetectorFieldName DetectorKind = "field_name"
	DetectorPattern   DetectorKind = "pattern"
)

// RuleAction is the outcome a path rule forces for matching paths.
type RuleAction string

const (
	RuleActionPII    RuleAction = "pii"
	RuleActionNonPII RuleAction = "nonpii"
)

// ProtectionStrategy defines how a sensitive value is transformed.
type ProtectionStrategy string

const (
	StrategyEncrypt      ProtectionStrategy = "encrypt"
	StrategyMask         ProtectionStrategy = "mask"
	StrategyPseudonymize ProtectionStrategy = "pseudonymize"
	StrategyHash         ProtectionStrategy = "hash"
	StrategyAnonymize    ProtectionStrategy = "anonymize"
)

// RetentionAction records a lifecycle transition in an audit trail.
type RetentionAction string

const (
	RetentionActionCreated    RetentionAction = "created"
	RetentionActionUpdated    RetentionAction = "updated"
	RetentionActionDeleted    RetentionAction = "deleted"
	RetentionActionRetained   RetentionAction = "retained"
	RetentionActionAnonymized RetentionAction = "anonymized"
)

// PathRule maps a glob pattern over field paths to a forced classification.
type PathRule struct {
	Match    string     `json:"match" yaml:"match"`
	Action   RuleAction `json:"action" yaml:"action"`
	Category Category   `json:"category,omitempty" yaml:"category,omitempty"`
}

// FieldHint forces sensitivity on or off for an exact field path.
type FieldHint struct {
	Path      string   `json:"path" yaml:"path"`
	Sensitive bool     `json:"sensitive" yaml:"sensitive"`
	Category  Category `json:"category,omitempty" yaml:"category,omitempty"`
}

// PolicyBundle is the resolved per-(domain, tenant) classification policy.
// Bundles are effectively immutable once resolved for a call.
type PolicyBundle struct {
	Domain          string                          `json:"domain" yaml:"domain"`
	Tenant          string                          `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	IncludeKeywords []string                        `json:"include_keywords" yaml:"include_keywords"`
	ExcludeKeywords []string                        `json:"exclude_keywords,omitempty" yaml:"exclude_keywords,omitempty"`
	FieldHints      []FieldHint                     `json:"field_hints,omitempty" yaml:"field_hints,omitempty"`
	PathRules       []PathRule                      `json:"path_rules,omitempty" yaml:"path_rules,omitempty"`
	Protection      map[Category]ProtectionStrategy `json:"protection,omitempty" yaml:"protection,omitempty"`
}

// MatchDetail describes a single sensitive-field detection. Value holds the
// raw leaf and must never reach logs or persisted output downstream.
type MatchDetail struct {
	Path       string       `json:"path"`
	FieldName  string       `json:"field_name"`
	Value      string       `json:"-"`
	Categories []Category   `json:"categories"`
	Detector   DetectorKind `json:"detector"`
	Confidence float64      `json:"confidence"`
}

// Classification is the aggregate outcome of scanning one record. It is
// request-scoped and carries no persisted identity.
type Classification struct {
	ContainsPII        bool                 `json:"contains_pii"`
	SensitiveFields    []string             `json:"sensitive_fields"`
	Categories         []Category           `json:"categories"`
	Confidentiality    ConfidentialityLevel `json:"confidentiality"`
	RequiresEncryption bool                 `json:"requires_encryption"`
	GDPRApplicable     bool                 `json:"gdpr_applicable"`
	HIPAAApplicable    bool                 `json:"hipaa_applicable"`
	POPIAApplicable    bool                 `json:"popia_applicable"`
	RiskScore          float64              `json:"risk_score"`
	Matches            []MatchDetail        `json:"matches"`
	Domain             string               `json:"domain,omitempty"`
	Tenant             string               `json:"tenant,omitempty"`
}

// HasCategory reports whether the classification carries the given category.
func (c *Classification) HasCategory(cat Category) bool {
	for _, have := range c.Categories {
		if have == cat {
			return true
		}
	}
	return false
}

// MatchForPath returns the match recorded for a field path, if any.
func (c *Classification) MatchForPath(path string) (MatchDetail, bool) {
	for _, m := range c.Matches {
		if m.Path == path {
			return m, true
		}
	}
	return MatchDetail{}, false
}

// ProtectionResult records one applied field transform. OriginalValue is
// ephemeral and must never be persisted.
type ProtectionResult struct {
	Path           string             `json:"path"`
	FieldName      string             `json:"field_name"`
	OriginalValue  string             `json:"-"`
	ProtectedValue string             `json:"protected_value"`
	Strategy       ProtectionStrategy `json:"strategy"`
	KeyID          string             `json:"key_id,omitempty"`
	Reversible     bool               `json:"reversible"`
	ProtectedAt    time.Time          `json:"protected_at"`
}

// RetentionPeriod defines how long data in a category must be kept.
type RetentionPeriod struct {
	Category            Category `json:"category" yaml:"category"`
	RetentionDays       int      `json:"retention_days" yaml:"retention_days"`
	LegalBasis          string   `json:"legal_basis" yaml:"legal_basis"`
	AutomaticDeletion   bool     `json:"automatic_deletion" yaml:"automatic_deletion"`
	RequiresUserConsent bool     `json:"requires_user_consent" yaml:"requires_user_consent"`
}

// RetentionDecision is the outcome of a retention calculation.
type RetentionDecision struct {
	ExpiresAt         time.Time `json:"expires_at"`
	RetentionDays     int       `json:"retention_days"`
	LegalBasis        string    `json:"legal_basis"`
	AutomaticDeletion bool      `json:"automatic_deletion"`
	RulePack          string    `json:"rule_pack"`
}

// RetentionAudit is a versioned audit record for a retention transition.
// Persistence of audit records is owned by the caller.
type RetentionAudit struct {
	ID              uuid.UUID         `json:"id"`
	TenantID        string            `json:"tenant_id,omitempty"`
	EntityID        string            `json:"entity_id"`
	Domain          string            `json:"domain"`
	Action          RetentionAction   `json:"action"`
	RetentionExpiry time.Time         `json:"retention_expiry"`
	LegalBasis      string            `json:"legal_basis"`
	Actor           string            `json:"actor"`
	Timestamp       time.Time         `json:"timestamp"`
	RulePack        string            `json:"rule_pack"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DeletionRequest asks the retention calculator to decide a deletion.
type DeletionRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	EntityID string `json:"entity_id"`
	Domain   string `json:"domain"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
}

// LegalHold prevents deletion of an entity's data regardless of expiry.
type LegalHold struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	Reason    string    `json:"reason"`
	AppliedBy string    `json:"applied_by"`
	AppliedAt time.Time `json:"applied_at"`
	Active    bool      `json:"active"`
}
