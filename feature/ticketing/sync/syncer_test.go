package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"ticketing-sync/core/diffs"
	"ticketing-sync/feature/ticketing/models"
	"ticketing-sync/feature/ticketing/providers"
	"ticketing-sync/feature/ticketing/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConnector is a scriptable test connector.
type fakeConnector struct {
	mu       sync.Mutex
	wrappers []models.EventSerieWrapper
	err      error
	calls    int
	lastFrom time.Time
	started  chan struct{}
	release  chan struct{}
	consumed bool
	testOK   bool
}

func (f *fakeConnector) Provider() string { return "fake" }

func (f *fakeConnector) TestConnection(ctx context.Context) (bool, error) {
	return f.testOK, f.err
}

func (f *fakeConnector) GetEventsSeries(ctx context.Context, from time.Time, to *time.Time) ([]models.EventSerieWrapper, error) {
	f.mu.Lock()
	f.calls++
	f.lastFrom = from
	var started, release chan struct{}
	if !f.consumed {
		f.consumed = true
		started, release = f.started, f.release
	}
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	return f.wrappers, f.err
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestSyncer(connector *fakeConnector, snapshots store.SnapshotStore) *Syncer {
	factories := map[string]Factory{
		"fake": func(providers.Credentials, *zap.Logger) providers.Connector {
			return connector
		},
	}
	return NewSyncerWithFactories(factories, snapshots, zap.NewNop())
}

func wrapperFixture(serieID, name string, total int) models.EventSerieWrapper {
	return models.EventSerieWrapper{
		Serie: models.EventSerie{InternalTicketingSystemID: serieID, Name: name},
		Sales: []models.Sale{{
			InternalEventTicketingSystemID:          serieID,
			InternalTicketCategoryTicketingSystemID: "cat-1",
			Total:                                   total,
		}},
	}
}

// TestReconcile_Classification tests that fetched series are classified
// against the stored snapshots, stored series outside the fetch stay
// untouched, and only added or updated series are persisted.
func TestReconcile_Classification(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemoryStore()

	// Stored state: one serie that will change, one identical, one that the
	// provider will not return at all.
	require.NoError(t, snapshots.SaveWrapper(ctx, "org-1", wrapperFixture("changed", "Changed", 10)))
	require.NoError(t, snapshots.SaveWrapper(ctx, "org-1", wrapperFixture("same", "Same", 5)))
	require.NoError(t, snapshots.SaveWrapper(ctx, "org-1", wrapperFixture("untouched", "Untouched", 3)))

	connector := &fakeConnector{wrappers: []models.EventSerieWrapper{
		wrapperFixture("changed", "Changed", 12),
		wrapperFixture("same", "Same", 5),
		wrapperFixture("fresh", "Fresh", 1),
	}}
	syncer := newTestSyncer(connector, snapshots)

	org := Organization{ID: "org-1", Provider: "fake", LastSynchronizedAt: time.Now().Add(-time.Hour)}
	summary, err := syncer.Reconcile(ctx, org, nil)
	require.NoError(t, err)

	assert.Equal(t, diffs.Summary{Added: 1, Updated: 1, Unchanged: 1}, summary.Series)
	assert.Equal(t, diffs.StateAdded, summary.States["fresh"])
	assert.Equal(t, diffs.StateUpdated, summary.States["changed"])
	assert.Equal(t, diffs.StateUnchanged, summary.States["same"])

	// A stored serie the provider did not return is not classified at all.
	_, present := summary.States["untouched"]
	assert.False(t, present)

	stored, err := snapshots.LoadWrappers(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 12, stored["changed"].Sales[0].Total)
	assert.Contains(t, stored, "fresh")
	assert.Contains(t, stored, "untouched")

	// Watermark advanced to the pass start.
	watermark, err := snapshots.LastSyncAt(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, summary.SyncedAt, watermark)
	assert.False(t, watermark.IsZero())
}

// TestRun_RejectsConcurrentPass tests that a second pass for the same
// organization is refused before the connector is invoked.
func TestRun_RejectsConcurrentPass(t *testing.T) {
	connector := &fakeConnector{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer := newTestSyncer(connector, store.NewMemoryStore())
	org := Organization{ID: "org-1", Provider: "fake", LastSynchronizedAt: time.Now()}

	done := make(chan error, 1)
	go func() {
		_, err := syncer.Run(context.Background(), org, nil)
		done <- err
	}()
	<-connector.started

	_, err := syncer.Run(context.Background(), org, nil)
	assert.Equal(t, ErrSyncAlreadyOngoing, err)
	assert.Equal(t, 1, connector.callCount())

	close(connector.release)
	require.NoError(t, <-done)

	// Once the first pass finished, the organization is free again.
	connector.release = nil
	connector.started = nil
	_, err = syncer.Run(context.Background(), org, nil)
	require.NoError(t, err)
}

// TestRun_AllowsDifferentOrganizations tests that the guard is scoped per
// organization.
func TestRun_AllowsDifferentOrganizations(t *testing.T) {
	first := &fakeConnector{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	syncer := newTestSyncer(first, store.NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		_, err := syncer.Run(context.Background(), Organization{ID: "org-1", Provider: "fake", LastSynchronizedAt: time.Now()}, nil)
		done <- err
	}()
	<-first.started

	_, err := syncer.Run(context.Background(), Organization{ID: "org-2", Provider: "fake", LastSynchronizedAt: time.Now()}, nil)
	require.NoError(t, err)

	close(first.release)
	require.NoError(t, <-done)
}

// TestRun_LoadsStoredWatermark tests that a zero watermark falls back to
// the stored one.
func TestRun_LoadsStoredWatermark(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemoryStore()
	stored := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, snapshots.SetLastSyncAt(ctx, "org-1", stored))

	connector := &fakeConnector{}
	syncer := newTestSyncer(connector, snapshots)

	_, err := syncer.Run(ctx, Organization{ID: "org-1", Provider: "fake"}, nil)
	require.NoError(t, err)
	assert.Equal(t, stored, connector.lastFrom)
}

// TestRun_UnsupportedProvider tests the factory lookup failure.
func TestRun_UnsupportedProvider(t *testing.T) {
	syncer := NewSyncer(store.NewMemoryStore(), zap.NewNop())
	_, err := syncer.Run(context.Background(), Organization{ID: "org-1", Provider: "unknown"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported ticketing provider")
}

// TestDefaultFactories tests that every supported provider is wired.
func TestDefaultFactories(t *testing.T) {
	factories := DefaultFactories()
	for _, name := range []string{
		providers.Billetweb,
		providers.Dice,
		providers.Shotgun,
		providers.Supersoniks,
		providers.Yurplan,
	} {
		factory, ok := factories[name]
		require.True(t, ok, "missing factory for %s", name)

		connector := factory(providers.Credentials{AccessKey: "a", SecretKey: "b"}, zap.NewNop())
		assert.Equal(t, name, connector.Provider())
	}
}

// TestTestConnection_Delegates tests that the credential check reaches the
// connector.
func TestTestConnection_Delegates(t *testing.T) {
	connector := &fakeConnector{testOK: true}
	syncer := newTestSyncer(connector, store.NewMemoryStore())

	ok, err := syncer.TestConnection(context.Background(), Organization{ID: "org-1", Provider: "fake"})
	require.NoError(t, err)
	assert.True(t, ok)
}
