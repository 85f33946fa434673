package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// sweeperActor identifies audits produced by scheduled sweeps.
const sweeperActor = "retention-sweeper"

// RecordRef identifies one stored record eligible for retention evaluation.
type RecordRef struct {
	TenantID       string
	EntityID       string
	Domain         string
	CreatedAt      time.Time
	Classification *types.Classification
}

// RecordSource lists records for sweep evaluation. Implementations own all
// I/O, retries and backoff.
type RecordSource interface {
	ListRecords(ctx context.Context) ([]RecordRef, error)
}

// AuditSink receives audit records produced by a sweep. Persistence is
// owned by the implementation.
type AuditSink interface {
	Record(ctx context.Context, audit types.RetentionAudit) error
}

// Sweeper periodically evaluates stored records against their retention
// windows and emits deletion audits for expired, auto-deletable data.
type Sweeper struct {
	calculator *Calculator
	source     RecordSource
	sink       AuditSink
	schedule   string
	runner     *cron.Cron
}

// NewSweeper creates a sweeper with a cron schedule expression, e.g.
// "0 3 * * *" for a daily 03:00 sweep.
func NewSweeper(calculator *Calculator, source RecordSource, sink AuditSink, schedule string) *Sweeper {
	return &Sweeper{
		calculator: calculator,
		source:     source,
		sink:       sink,
		schedule:   schedule,
		runner:     cron.New(),
	}
}

// Start begins scheduled sweeping.
func (s *Sweeper) Start() error {
	_, err := s.runner.AddFunc(s.schedule, func() {
		// Errors from scheduled runs surface through the sink's own
		// observability; a failed sweep retries at the next tick.
		_, _ = s.SweepOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.runner.Start()
	return nil
}

// Stop halts scheduled sweeping and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.runner.Stop()
	<-ctx.Done()
}

// SweepOnce evaluates every record once and returns the number of deletion
// audits emitted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	records, err := s.source.ListRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list records for sweep: %w", err)
	}

	deleted := 0
	for _, record := range records {
		expired, err := s.calculator.IsExpired(ctx, record.CreatedAt, record.Classification, record.TenantID, record.Domain)
		if err != nil {
			return deleted, err
		}
		if !expired {
			continue
		}

		decision, err := s.calculator.CalculateExpiry(ctx, record.Classification, record.TenantID, record.Domain)
		if err != nil {
			return deleted, err
		}
		if !decision.AutomaticDeletion {
			continue
		}

		audit, err := s.calculator.ProcessDeletion(types.DeletionRequest{
			TenantID: record.TenantID,
			EntityID: record.EntityID,
			Domain:   record.Domain,
			Reason:   "retention_expiry",
			Actor:    sweeperActor,
		})
		if err != nil {
			return deleted, err
		}
		if err := s.sink.Record(ctx, *audit); err != nil {
			return deleted, fmt.Errorf("failed to record sweep audit: %w", err)
		}
		if audit.Action == types.RetentionActionDeleted {
			deleted++
		}
	}

	return deleted, nil
}
