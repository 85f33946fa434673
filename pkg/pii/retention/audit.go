package retention

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jscharber/privacyguard/pkg/pii/types"
)

// reasonLegalRequirement forces retention of data a subject asked to delete.
const reasonLegalRequirement = "legal_requirement"

// holdRegistry tracks active legal holds by entity.
type holdRegistry struct {
	mu    sync.RWMutex
	holds map[string]types.LegalHold
}

func newHoldRegistry() *holdRegistry {
	return &holdRegistry{holds: make(map[string]types.LegalHold)}
}

func (r *holdRegistry) activeFor(entityID string) (types.LegalHold, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hold, ok := r.holds[entityID]
	return hold, ok && hold.Active
}

// ApplyLegalHold registers an active legal hold for an entity. While the
// hold stands, deletion requests resolve to retained unconditionally.
func (c *Calculator) ApplyLegalHold(hold types.LegalHold) error {
	if hold.EntityID == "" {
		return fmt.Errorf("legal hold must name an entity")
	}
	hold.Active = true
	if hold.AppliedAt.IsZero() {
		hold.AppliedAt = c.clock.Now()
	}
	c.holds.mu.Lock()
	defer c.holds.mu.Unlock()
	c.holds.holds[hold.EntityID] = hold
	return nil
}

// RemoveLegalHold lifts the hold for an entity.
func (c *Calculator) RemoveLegalHold(entityID string) {
	c.holds.mu.Lock()
	defer c.holds.mu.Unlock()
	delete(c.holds.holds, entityID)
}

// RecordCreation produces the audit record for newly stored data.
func (c *Calculator) RecordCreation(ctx context.Context, classification *types.Classification, tenantID, entityID, domain, actor string) (*types.RetentionAudit, error) {
	decision, err := c.CalculateExpiry(ctx, classification, tenantID, domain)
	if err != nil {
		return nil, err
	}

	audit := c.newAudit(tenantID, entityID, domain, actor, types.RetentionActionCreated)
	audit.RetentionExpiry = decision.ExpiresAt
	audit.LegalBasis = decision.LegalBasis
	return audit, nil
}

// ProcessDeletion decides a deletion request. An active legal hold forces
// retention unconditionally; a legal_requirement reason also retains.
// Anonymization is never an outcome of this path.
func (c *Calculator) ProcessDeletion(request types.DeletionRequest) (*types.RetentionAudit, error) {
	if request.EntityID == "" {
		return nil, fmt.Errorf("deletion request must name an entity")
	}

	action := types.RetentionActionDeleted
	metadata := map[string]string{"reason": request.Reason}

	if hold, held := c.holds.activeFor(request.EntityID); held {
		action = types.RetentionActionRetained
		metadata["legal_hold_id"] = hold.ID
		metadata["legal_hold_reason"] = hold.Reason
	} else if request.Reason == reasonLegalRequirement {
		action = types.RetentionActionRetained
	}

	audit := c.newAudit(request.TenantID, request.EntityID, request.Domain, request.Actor, action)
	audit.Metadata = metadata
	return audit, nil
}

// Anonymize produces the audit record for an anonymization transition. This
// is the only entry point that yields the anonymized action.
func (c *Calculator) Anonymize(tenantID, entityID, domain, actor string) *types.RetentionAudit {
	return c.newAudit(tenantID, entityID, domain, actor, types.RetentionActionAnonymized)
}

func (c *Calculator) newAudit(tenantID, entityID, domain, actor string, action types.RetentionAction) *types.RetentionAudit {
	return &types.RetentionAudit{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EntityID:  entityID,
		Domain:    domain,
		Action:    action,
		Actor:     actor,
		Timestamp: c.clock.Now(),
		RulePack:  c.rulePack,
	}
}
