package ticketing

import (
	"context"
	"time"

	"ticketing-sync/feature/ticketing/providers"
	"ticketing-sync/feature/ticketing/sync"

	"go.uber.org/zap"
)

// SyncRequest is the external input of one synchronization pass.
type SyncRequest struct {
	OrganizationID string                `json:"organization_id" validate:"required"`
	Provider       string                `json:"provider" validate:"required,oneof=billetweb dice shotgun supersoniks yurplan"`
	Credentials    providers.Credentials `json:"credentials" validate:"required"`

	// Watermark marks everything already synchronized; when omitted the
	// stored watermark applies.
	Watermark *time.Time `json:"watermark,omitempty"`

	// BoundDate caps the window, for controlled scenarios only.
	BoundDate *time.Time `json:"bound_date,omitempty"`
}

// Service exposes the synchronization engine to the HTTP surface and the
// CLI.
type Service struct {
	syncer *sync.Syncer
	logger *zap.Logger
}

// NewService creates a ticketing service.
func NewService(syncer *sync.Syncer, logger *zap.Logger) *Service {
	return &Service{syncer: syncer, logger: logger}
}

func (s *Service) organization(req SyncRequest) sync.Organization {
	org := sync.Organization{
		ID:          req.OrganizationID,
		Provider:    req.Provider,
		Credentials: req.Credentials,
	}
	if req.Watermark != nil {
		org.LastSynchronizedAt = *req.Watermark
	}
	return org
}

// Sync runs one reconciled synchronization pass. Business refusals are
// expected outcomes a user can act on, so they log at warn instead of
// error.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*sync.Summary, error) {
	if err := providers.ValidatePayload("sync request", req); err != nil {
		return nil, err
	}

	summary, err := s.syncer.Reconcile(ctx, s.organization(req), req.BoundDate)
	if err != nil {
		if providers.IsBusiness(err) {
			s.logger.Warn("synchronization refused",
				zap.String("organization", req.OrganizationID),
				zap.String("provider", req.Provider),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return summary, nil
}

// Check validates the organization's ticketing credentials.
func (s *Service) Check(ctx context.Context, req SyncRequest) (bool, error) {
	if err := providers.ValidatePayload("check request", req); err != nil {
		return false, err
	}
	return s.syncer.TestConnection(ctx, s.organization(req))
}
