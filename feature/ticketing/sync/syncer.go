package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticketing-sync/core/diffs"
	"ticketing-sync/feature/ticketing/models"
	"ticketing-sync/feature/ticketing/providers"
	"ticketing-sync/feature/ticketing/providers/billetweb"
	"ticketing-sync/feature/ticketing/providers/dice"
	"ticketing-sync/feature/ticketing/providers/shotgun"
	"ticketing-sync/feature/ticketing/providers/supersoniks"
	"ticketing-sync/feature/ticketing/providers/yurplan"
	"ticketing-sync/feature/ticketing/store"

	"go.uber.org/zap"
)

// ErrSyncAlreadyOngoing rejects a synchronization request for an
// organization that already has one in flight. Concurrent passes against
// the same provider credentials would double-count rate-limited requests
// and could apply diffs out of order, so the second request is refused
// rather than queued.
var ErrSyncAlreadyOngoing = &providers.Error{
	Code:    "sync_already_ongoing",
	Message: "a synchronization is already ongoing for this organization",
}

// Organization is the sync-relevant slice of an organization's ticketing
// configuration.
type Organization struct {
	ID                 string
	Provider           string
	Credentials        providers.Credentials
	LastSynchronizedAt time.Time
}

// Factory builds a connector for one provider.
type Factory func(providers.Credentials, *zap.Logger) providers.Connector

// DefaultFactories wires the five supported providers.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		providers.Billetweb: func(c providers.Credentials, l *zap.Logger) providers.Connector {
			return billetweb.New(c, l)
		},
		providers.Dice: func(c providers.Credentials, l *zap.Logger) providers.Connector {
			return dice.New(c, l)
		},
		providers.Shotgun: func(c providers.Credentials, l *zap.Logger) providers.Connector {
			return shotgun.New(c, l)
		},
		providers.Supersoniks: func(c providers.Credentials, l *zap.Logger) providers.Connector {
			return supersoniks.New(c, l)
		},
		providers.Yurplan: func(c providers.Credentials, l *zap.Logger) providers.Connector {
			return yurplan.New(c, l)
		},
	}
}

// Syncer drives synchronization passes. One logical worker per request,
// no internal parallelism; the per-organization guard only rejects
// concurrent passes for the same organization, two different organizations
// may synchronize at the same time.
type Syncer struct {
	factories map[string]Factory
	snapshots store.SnapshotStore
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSyncer creates a Syncer over the default provider factories.
func NewSyncer(snapshots store.SnapshotStore, logger *zap.Logger) *Syncer {
	return NewSyncerWithFactories(DefaultFactories(), snapshots, logger)
}

// NewSyncerWithFactories creates a Syncer over a custom factory set.
func NewSyncerWithFactories(factories map[string]Factory, snapshots store.SnapshotStore, logger *zap.Logger) *Syncer {
	return &Syncer{
		factories: factories,
		snapshots: snapshots,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

// connector selects the adapter for the organization's configured provider.
func (s *Syncer) connector(org Organization) (providers.Connector, error) {
	factory, ok := s.factories[org.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported ticketing provider: %s", org.Provider)
	}
	return factory(org.Credentials, s.logger), nil
}

// acquire registers an in-flight pass for the organization, refusing a
// second one. It short-circuits before any remote call is made.
func (s *Syncer) acquire(organizationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ongoing := s.inFlight[organizationID]; ongoing {
		return ErrSyncAlreadyOngoing
	}
	s.inFlight[organizationID] = struct{}{}
	return nil
}

func (s *Syncer) release(organizationID string) {
	s.mu.Lock()
	delete(s.inFlight, organizationID)
	s.mu.Unlock()
}

// Run performs one synchronization pass and returns the raw wrappers. The
// orchestrator does not retry; retry and time budgets belong to the caller.
func (s *Syncer) Run(ctx context.Context, org Organization, boundDate *time.Time) ([]models.EventSerieWrapper, error) {
	if err := s.acquire(org.ID); err != nil {
		return nil, err
	}
	defer s.release(org.ID)

	return s.run(ctx, org, boundDate)
}

func (s *Syncer) run(ctx context.Context, org Organization, boundDate *time.Time) ([]models.EventSerieWrapper, error) {
	connector, err := s.connector(org)
	if err != nil {
		return nil, err
	}

	if org.LastSynchronizedAt.IsZero() {
		watermark, err := s.snapshots.LastSyncAt(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		org.LastSynchronizedAt = watermark
	}

	s.logger.Info("synchronization started",
		zap.String("organization", org.ID),
		zap.String("provider", org.Provider),
		zap.Time("watermark", org.LastSynchronizedAt),
	)

	wrappers, err := connector.GetEventsSeries(ctx, org.LastSynchronizedAt, boundDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("synchronization fetched",
		zap.String("organization", org.ID),
		zap.Int("series", len(wrappers)),
	)
	return wrappers, nil
}

// TestConnection validates the organization's credentials without pulling
// real data.
func (s *Syncer) TestConnection(ctx context.Context, org Organization) (bool, error) {
	connector, err := s.connector(org)
	if err != nil {
		return false, err
	}
	return connector.TestConnection(ctx)
}

// Summary reports the outcome of a reconciled pass.
type Summary struct {
	// Series counts the serie-level classification buckets.
	Series diffs.Summary `json:"series"`

	// States maps each fetched serie ID to its classification.
	States map[string]diffs.State `json:"states"`

	// SyncedAt is the new watermark.
	SyncedAt time.Time `json:"synced_at"`
}

// Reconcile runs a pass, diffs the fresh wrappers against the last stored
// snapshot, persists only the meaningfully changed series, and advances the
// watermark. Series absent from the fetch were simply untouched since the
// watermark; they are never classified as removed.
func (s *Syncer) Reconcile(ctx context.Context, org Organization, boundDate *time.Time) (*Summary, error) {
	if err := s.acquire(org.ID); err != nil {
		return nil, err
	}
	defer s.release(org.ID)

	startedAt := time.Now()

	wrappers, err := s.run(ctx, org, boundDate)
	if err != nil {
		return nil, err
	}

	stored, err := s.snapshots.LoadWrappers(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]models.EventSerieWrapper, len(wrappers))
	for _, w := range wrappers {
		fresh[w.Serie.InternalTicketingSystemID] = w
	}

	// Restrict the before-side to the fetched keys: the adapter only
	// returns series changed since the watermark.
	previous := make(map[string]models.EventSerieWrapper, len(fresh))
	for id := range fresh {
		if before, ok := stored[id]; ok {
			previous[id] = before
		}
	}

	results := diffs.Diff(previous, fresh, diffs.Options{OmitDeltas: true})

	states := make(map[string]diffs.State, len(results))
	for id, result := range results {
		states[id] = result.State
		switch result.State {
		case diffs.StateAdded, diffs.StateUpdated:
			if err := s.snapshots.SaveWrapper(ctx, org.ID, *result.After); err != nil {
				return nil, err
			}
		}
	}

	if err := s.snapshots.SetLastSyncAt(ctx, org.ID, startedAt); err != nil {
		return nil, err
	}

	summary := &Summary{
		Series:   diffs.Summarize(results),
		States:   states,
		SyncedAt: startedAt,
	}

	s.logger.Info("synchronization reconciled",
		zap.String("organization", org.ID),
		zap.Int("added", summary.Series.Added),
		zap.Int("updated", summary.Series.Updated),
		zap.Int("unchanged", summary.Series.Unchanged),
	)
	return summary, nil
}
