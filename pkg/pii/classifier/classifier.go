package classifier

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jscharber/privacyguard/pkg/pii/patterns"
	"github.com/jscharber/privacyguard/pkg/pii/policy"
	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// Confidence constants for the detection stages. Downstream alert thresholds
// depend on these exact values; do not tune them in place.
const (
	confidencePathRule  = 1.0
	confidenceFieldName = 0.6
	confidencePattern   = 0.7
	confidenceCombined  = 0.95
)

// categoryWeights drive the risk score.
var categoryWeights = map[types.Category]float64{
	types.CategorySensitive:          1.0,
	types.CategoryHealth:             0.9,
	types.CategoryFinancial:          0.8,
	types.CategoryPersonalIdentifier: 0.6,
	types.CategoryContactInfo:        0.4,
}

// categoryKeywords are the keyword groups used to assign categories to a
// flagged field, independently of which detector flagged it.
var categoryKeywords = map[types.Category][]string{
	types.CategoryPersonalIdentifier: {
		"ssn", "social security", "national id", "tax id", "passport",
		"license", "dob", "date of birth", "birthdate", "name", "surname",
	},
	types.CategoryContactInfo: {
		"email", "phone", "mobile", "fax", "address", "street", "city",
		"zip", "postal",
	},
	types.CategoryFinancial: {
		"credit", "card", "account", "iban", "routing", "bank", "salary",
		"income", "payment",
	},
	types.CategoryHealth: {
		"medical", "health", "diagnosis", "prescription", "patient", "mrn",
		"blood", "allergy",
	},
	types.CategorySensitive: {
		"race", "ethnicity", "religion", "political", "sexual", "biometric",
		"genetic", "union membership",
	},
}

// Metrics tracks classifier activity. Counters are atomic so concurrent
// classifications need no coordination.
type Metrics struct {
	TotalClassifications atomic.Int64
	FieldsScanned        atomic.Int64
	FieldsFlagged        atomic.Int64
	ClassificationErrors atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the classifier counters.
type MetricsSnapshot struct {
	TotalClassifications int64
	FieldsScanned        int64
	FieldsFlagged        int64
	ClassificationErrors int64
}

// Classifier walks structured records and decides, per string leaf, whether
// the field is sensitive, which categories apply and with what confidence.
// Classification is pure: identical input yields identical output.
type Classifier struct {
	provider *policy.Provider
	patterns *patterns.Registry
	tracer   trace.Tracer
	metrics  *Metrics
}

// New creates a classifier backed by an explicit policy registry. Domain
// policies must be registered before the first classification of that domain.
func New(registry *policy.Registry) *Classifier {
	return &Classifier{
		provider: policy.NewProvider(registry),
		patterns: patterns.NewRegistry(),
		tracer:   otel.Tracer("pii_classifier"),
		metrics:  &Metrics{},
	}
}

// Metrics returns a snapshot of classifier counters.
func (c *Classifier) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalClassifications: c.metrics.TotalClassifications.Load(),
		FieldsScanned:        c.metrics.FieldsScanned.Load(),
		FieldsFlagged:        c.metrics.FieldsFlagged.Load(),
		ClassificationErrors: c.metrics.ClassificationErrors.Load(),
	}
}

// Classify scans a record for sensitive content under the policy resolved
// for (domain, tenant). Cyclic structures are rejected, never looped over.
func (c *Classifier) Classify(ctx context.Context, record map[string]any, domain, tenant string) (*types.Classification, error) {
	_, span := c.tracer.Start(ctx, "classify_record")
	defer span.End()

	span.SetAttributes(
		attribute.String("pii.domain", domain),
		attribute.Bool("pii.tenant_scoped", tenant != ""),
	)

	c.metrics.TotalClassifications.Add(1)

	bundle := c.provider.GetPolicy(domain, tenant)

	walker := &walker{
		classifier: c,
		bundle:     &bundle,
		tenant:     tenant,
		onPath:     make(map[uintptr]bool),
	}
	if err := walker.walkMap("", record); err != nil {
		span.RecordError(err)
		c.metrics.ClassificationErrors.Add(1)
		return nil, err
	}

	result := c.aggregate(walker.matches, domain, tenant)

	span.SetAttributes(
		attribute.Int("pii.match_count", len(result.Matches)),
		attribute.Bool("pii.contains_pii", result.ContainsPII),
		attribute.Float64("pii.risk_score", result.RiskScore),
		attribute.String("pii.confidentiality", string(result.Confidentiality)),
	)

	return result, nil
}

// walker carries the traversal state for a single classification.
type walker struct {
	classifier *Classifier
	bundle     *types.PolicyBundle
	tenant     string
	onPath     map[uintptr]bool
	matches    []types.MatchDetail
}

func (w *walker) walkMap(prefix string, record map[string]any) error {
	ptr := reflect.ValueOf(record).Pointer()
	if w.onPath[ptr] {
		return fmt.Errorf("cyclic structure detected at %q", prefix)
	}
	w.onPath[ptr] = true
	defer delete(w.onPath, ptr)

	// Sorted keys keep traversal, and therefore match order, deterministic.
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fieldPath := key
		if prefix != "" {
			fieldPath = prefix + "." + key
		}
		if err := w.walkValue(fieldPath, key, record[key]); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkSlice(prefix, fieldName string, items []any) error {
	ptr := reflect.ValueOf(items).Pointer()
	if w.onPath[ptr] {
		return fmt.Errorf("cyclic structure detected at %q", prefix)
	}
	w.onPath[ptr] = true
	defer delete(w.onPath, ptr)

	for i, item := range items {
		elemPath := fmt.Sprintf("%s[%d]", prefix, i)
		if err := w.walkValue(elemPath, fieldName, item); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkValue(fieldPath, fieldName string, value any) error {
	switch v := value.(type) {
	case map[string]any:
		return w.walkMap(fieldPath, v)
	case []any:
		return w.walkSlice(fieldPath, fieldName, v)
	case string:
		w.classifier.metrics.FieldsScanned.Add(1)
		if match, ok := w.classifier.evaluateLeaf(w.bundle, fieldPath, fieldName, v); ok {
			w.classifier.metrics.FieldsFlagged.Add(1)
			w.matches = append(w.matches, match)
		}
		return nil
	default:
		// Non-string scalars carry no detectable text.
		return nil
	}
}

// evaluateLeaf applies the four-stage precedence chain to a string leaf.
// The first stage that decides the field short-circuits the rest.
func (c *Classifier) evaluateLeaf(bundle *types.PolicyBundle, fieldPath, fieldName, value string) (types.MatchDetail, bool) {
	// Stage 1: path rules. A nonpii rule discards the field entirely,
	// suppressing every later detector.
	if rule, ok := policy.MatchPathRule(bundle, fieldPath); ok {
		if rule.Action == types.RuleActionNonPII {
			return types.MatchDetail{}, false
		}
		ruleCategory := rule.Category
		if ruleCategory == "" {
			ruleCategory = types.CategoryPersonalIdentifier
		}
		return types.MatchDetail{
			Path:       fieldPath,
			FieldName:  fieldName,
			Value:      value,
			Categories: c.categorize(fieldName, value, ruleCategory),
			Detector:   types.DetectorPathRule,
			Confidence: confidencePathRule,
		}, true
	}

	// Stage 2: explicit field hints by exact path.
	if hint, ok := policy.HintForPath(bundle, fieldPath); ok {
		if !hint.Sensitive {
			return types.MatchDetail{}, false
		}
		return types.MatchDetail{
			Path:       fieldPath,
			FieldName:  fieldName,
			Value:      value,
			Categories: c.categorize(fieldName, value, hint.Category),
			Detector:   types.DetectorFieldName,
			Confidence: confidencePathRule,
		}, true
	}

	// Stage 3: keyword heuristic on the field name.
	nameMatched := matchesKeyword(fieldName, bundle.IncludeKeywords)

	// Stage 4: value pattern detectors.
	patternMatched := len(c.patterns.MatchAll(value)) > 0

	if !nameMatched && !patternMatched {
		return types.MatchDetail{}, false
	}

	detector := types.DetectorFieldName
	confidence := confidenceFieldName
	switch {
	case nameMatched && patternMatched:
		// Capped combination, not additive.
		confidence = confidenceCombined
	case patternMatched:
		detector = types.DetectorPattern
		confidence = confidencePattern
	}

	return types.MatchDetail{
		Path:       fieldPath,
		FieldName:  fieldName,
		Value:      value,
		Categories: c.categorize(fieldName, value, ""),
		Detector:   detector,
		Confidence: confidence,
	}, true
}

// categorize re-scans a flagged field against the category keyword groups
// and pattern corroboration, independent of which detector fired. A field
// may carry multiple categories; seed is merged in when non-empty.
func (c *Classifier) categorize(fieldName, value string, seed types.Category) []types.Category {
	assigned := make(map[types.Category]bool)
	if seed != "" {
		assigned[seed] = true
	}

	lowered := strings.ToLower(fieldName)
	for category, keywords := range categoryKeywords {
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				assigned[category] = true
				break
			}
		}
	}

	for _, matcher := range c.patterns.MatchAll(value) {
		assigned[matcher.Category()] = true
	}

	if len(assigned) == 0 {
		assigned[types.CategoryPersonalIdentifier] = true
	}

	return sortedCategories(assigned)
}

// aggregate folds the per-field matches into a classification result.
func (c *Classifier) aggregate(matches []types.MatchDetail, domain, tenant string) *types.Classification {
	result := &types.Classification{
		ContainsPII:     len(matches) > 0,
		SensitiveFields: make([]string, 0, len(matches)),
		Confidentiality: types.ConfidentialityPublic,
		Matches:         matches,
		Domain:          domain,
		Tenant:          tenant,
	}

	categories := make(map[types.Category]bool)
	for _, match := range matches {
		result.SensitiveFields = append(result.SensitiveFields, match.Path)
		for _, category := range match.Categories {
			categories[category] = true
		}
	}
	result.Categories = sortedCategories(categories)

	// Confidentiality is the highest severity tier matched.
	switch {
	case categories[types.CategoryHealth] || categories[types.CategorySensitive]:
		result.Confidentiality = types.ConfidentialityRestricted
	case categories[types.CategoryFinancial]:
		result.Confidentiality = types.ConfidentialityConfidential
	case categories[types.CategoryPersonalIdentifier] || categories[types.CategoryContactInfo]:
		result.Confidentiality = types.ConfidentialityInternal
	}

	result.RequiresEncryption = categories[types.CategoryFinancial] ||
		categories[types.CategoryHealth] || categories[types.CategorySensitive]

	result.GDPRApplicable = result.ContainsPII
	// HIPAA needs health data that is also linkable to a person; health
	// alone does not trip the gate.
	result.HIPAAApplicable = categories[types.CategoryHealth] &&
		(categories[types.CategoryContactInfo] || categories[types.CategoryPersonalIdentifier])
	result.POPIAApplicable = result.ContainsPII

	result.RiskScore = riskScore(matches, categories)

	return result
}

// riskScore combines severity, volume and certainty:
// maxCategoryWeight x (0.7 + 0.3 x min(matchCount/10, 1)) x meanConfidence,
// capped at 1.0.
func riskScore(matches []types.MatchDetail, categories map[types.Category]bool) float64 {
	if len(matches) == 0 {
		return 0.0
	}

	maxWeight := 0.0
	for category := range categories {
		if weight := categoryWeights[category]; weight > maxWeight {
			maxWeight = weight
		}
	}

	volume := float64(len(matches)) / 10.0
	if volume > 1.0 {
		volume = 1.0
	}

	totalConfidence := 0.0
	for _, match := range matches {
		totalConfidence += match.Confidence
	}
	meanConfidence := totalConfidence / float64(len(matches))

	score := maxWeight * (0.7 + 0.3*volume) * meanConfidence
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func matchesKeyword(fieldName string, keywords []string) bool {
	lowered := strings.ToLower(fieldName)
	for _, keyword := range keywords {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// categoryOrder fixes the serialization order of category sets.
var categoryOrder = []types.Category{
	types.CategoryPersonalIdentifier,
	types.CategoryContactInfo,
	types.CategoryFinancial,
	types.CategoryHealth,
	types.CategorySensitive,
}

func sortedCategories(set map[types.Category]bool) []types.Category {
	ordered := make([]types.Category, 0, len(set))
	for _, category := range categoryOrder {
		if set[category] {
			ordered = append(ordered, category)
		}
	}
	return ordered
}
