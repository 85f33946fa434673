package pii

import (
	"context"
	"time"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// RecordClassifier scans structured records for sensitive content.
type RecordClassifier interface {
	// Classify walks a record and returns its classification.
	Classify(ctx context.Context, record map[string]any, domain, tenant string) (*types.Classification, error)
}

// RecordProtector applies and reverses per-field protection transforms.
type RecordProtector interface {
	// Protect transforms every sensitive field and returns the protected
	// record plus a protection log.
	Protect(ctx context.Context, record map[string]any, classification *types.Classification) (map[string]any, []types.ProtectionResult, error)

	// Restore re-applies decryption for logged encrypt entries.
	Restore(ctx context.Context, record map[string]any, log []types.ProtectionResult) (map[string]any, error)

	// MaskForLog produces an always-irreversible log-safe copy.
	MaskForLog(record map[string]any, classification *types.Classification) map[string]any
}

// RetentionDecider derives retention windows and audit records.
type RetentionDecider interface {
	// CalculateExpiry computes the longest-applicable retention window.
	CalculateExpiry(ctx context.Context, classification *types.Classification, tenantID, domain string) (*types.RetentionDecision, error)

	// IsExpired reports whether data created at createdAt has outlived its
	// retention window.
	IsExpired(ctx context.Context, createdAt time.Time, classification *types.Classification, tenantID, domain string) (bool, error)

	// ProcessDeletion decides a deletion request, honoring legal holds.
	ProcessDeletion(request types.DeletionRequest) (*types.RetentionAudit, error)
}
