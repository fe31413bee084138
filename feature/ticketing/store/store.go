package store

import (
	"context"
	"time"

	"ticketing-sync/feature/ticketing/models"
)

// SnapshotStore is the persistence collaborator of the synchronization
// engine. It keeps, per organization, the last canonical wrapper of each
// serie and the watermark marking everything synchronized up to that point.
// The engine never mutates wrappers in place; changed series are replaced
// wholesale.
type SnapshotStore interface {
	// LoadWrappers returns the last stored wrappers for the organization,
	// keyed by the serie's internal ticketing system ID.
	LoadWrappers(ctx context.Context, organizationID string) (map[string]models.EventSerieWrapper, error)

	// SaveWrapper replaces the stored wrapper for its serie.
	SaveWrapper(ctx context.Context, organizationID string, wrapper models.EventSerieWrapper) error

	// LastSyncAt returns the organization's watermark, zero when the
	// organization has never synchronized.
	LastSyncAt(ctx context.Context, organizationID string) (time.Time, error)

	// SetLastSyncAt advances the organization's watermark.
	SetLastSyncAt(ctx context.Context, organizationID string, at time.Time) error
}
