package service

import (
	"context"
	"fmt"

	"github.com/deliverydesk/deliverydesk/internal/model"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// AuditService reads the audit trail.
type AuditService struct {
	store AuditStore
}

// NewAuditService creates a new AuditService.
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// List returns entries newest first. limit is clamped to 1..500, 0 means 100.
func (s *AuditService) List(ctx context.Context, entity, entityID string, limit int) ([]model.AuditEntry, error) {
	switch {
	case limit < 0:
		return nil, invalid("limit", "must be positive")
	case limit == 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	entries, err := s.store.ListAudit(ctx, repository.AuditFilter{
		Entity:   entity,
		EntityID: entityID,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
