package retention

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// DefaultRulePack versions the static retention defaults. Every audit record
// carries the rule pack that produced it so decisions stay explainable as
// policy evolves.
const DefaultRulePack = "privacyguard-retention/v1"

// floorRetentionDays is the minimum window applied when no category matches.
const floorRetentionDays = 30

// Clock supplies the current time. Retention math never reads the wall
// clock directly so tests stay deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// PolicyRepository resolves tenant-specific retention periods from an
// external source. Its failures propagate; only the absence of a repository
// falls back to the static defaults.
type PolicyRepository interface {
	GetRetentionPeriods(ctx context.Context, tenantID, domain string) ([]types.RetentionPeriod, error)
}

// defaultPeriods are the static retention defaults, keyed by category.
var defaultPeriods = []types.RetentionPeriod{
	{
		Category:          types.CategoryPersonalIdentifier,
		RetentionDays:     2555, // 7 years
		LegalBasis:        "legal_obligation",
		AutomaticDeletion: true,
	},
	{
		Category:          types.CategoryFinancial,
		RetentionDays:     2555, // 7 years
		LegalBasis:        "legal_obligation",
		AutomaticDeletion: false,
	},
	{
		Category:          types.CategoryContactInfo,
		RetentionDays:     1095, // 3 years
		LegalBasis:        "legitimate_interest",
		AutomaticDeletion: true,
	},
	{
		Category:          types.CategoryHealth,
		RetentionDays:     2190, // 6 years
		LegalBasis:        "legal_obligation",
		AutomaticDeletion: false,
	},
	{
		Category:            types.CategorySensitive,
		RetentionDays:       365, // 1 year
		LegalBasis:          "consent",
		AutomaticDeletion:   true,
		RequiresUserConsent: true,
	},
}

// Calculator derives retention windows, expiry decisions and audit records
// from classifications. All math routes through the injected clock.
type Calculator struct {
	clock      Clock
	repository PolicyRepository
	rulePack   string
	holds      *holdRegistry
	tracer     trace.Tracer
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock injects a clock.
func WithClock(clock Clock) Option {
	return func(c *Calculator) { c.clock = clock }
}

// WithRepository injects an external retention policy repository.
func WithRepository(repository PolicyRepository) Option {
	return func(c *Calculator) { c.repository = repository }
}

// WithRulePack overrides the rule-pack version stamped on audits.
func WithRulePack(rulePack string) Option {
	return func(c *Calculator) { c.rulePack = rulePack }
}

// NewCalculator creates a retention calculator. Without options it uses the
// system clock, the static defaults and the default rule pack.
func NewCalculator(opts ...Option) *Calculator {
	calc := &Calculator{
		clock:    SystemClock{},
		rulePack: DefaultRulePack,
		holds:    newHoldRegistry(),
		tracer:   otel.Tracer("pii_retention"),
	}
	for _, opt := range opts {
		opt(calc)
	}
	return calc
}

// CalculateExpiry computes the retention decision for a classification.
// Across all matched categories, the single entry with the maximum
// retentionDays wins and its legal basis and deletion flags apply wholesale.
func (c *Calculator) CalculateExpiry(ctx context.Context, classification *types.Classification, tenantID, domain string) (*types.RetentionDecision, error) {
	_, span := c.tracer.Start(ctx, "calculate_expiry")
	defer span.End()

	selected, err := c.selectPeriod(ctx, classification, tenantID, domain)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := c.clock.Now()
	decision := &types.RetentionDecision{
		ExpiresAt:         now.AddDate(0, 0, selected.RetentionDays),
		RetentionDays:     selected.RetentionDays,
		LegalBasis:        selected.LegalBasis,
		AutomaticDeletion: selected.AutomaticDeletion,
		RulePack:          c.rulePack,
	}

	span.SetAttributes(
		attribute.Int("retention.days", decision.RetentionDays),
		attribute.String("retention.legal_basis", decision.LegalBasis),
		attribute.String("retention.rule_pack", decision.RulePack),
	)

	return decision, nil
}

// IsExpired reports whether data created at createdAt has outlived its
// retention window.
func (c *Calculator) IsExpired(ctx context.Context, createdAt time.Time, classification *types.Classification, tenantID, domain string) (bool, error) {
	selected, err := c.selectPeriod(ctx, classification, tenantID, domain)
	if err != nil {
		return false, err
	}
	expiry := createdAt.AddDate(0, 0, selected.RetentionDays)
	return c.clock.Now().After(expiry), nil
}

// selectPeriod resolves applicable periods and picks the max-days winner.
func (c *Calculator) selectPeriod(ctx context.Context, classification *types.Classification, tenantID, domain string) (types.RetentionPeriod, error) {
	periods := defaultPeriods
	if c.repository != nil {
		loaded, err := c.repository.GetRetentionPeriods(ctx, tenantID, domain)
		if err != nil {
			// A silent fallback here could misrepresent a legal obligation.
			return types.RetentionPeriod{}, fmt.Errorf("failed to load retention periods: %w", err)
		}
		periods = loaded
	}

	selected := types.RetentionPeriod{
		RetentionDays:     floorRetentionDays,
		LegalBasis:        "minimal_retention",
		AutomaticDeletion: true,
	}

	if classification == nil {
		return selected, nil
	}

	matched := false
	for _, period := range periods {
		if !classification.HasCategory(period.Category) {
			continue
		}
		if !matched || period.RetentionDays > selected.RetentionDays {
			selected = period
			matched = true
		}
	}

	return selected, nil
}
