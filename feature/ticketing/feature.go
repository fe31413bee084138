package ticketing

import (
	"ticketing-sync/feature/ticketing/store"
	"ticketing-sync/feature/ticketing/sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature bundles the ticketing synchronization engine for the feature
// loader.
type Feature struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewFeature creates the ticketing feature.
func NewFeature(logger *zap.Logger, db *gorm.DB) *Feature {
	return &Feature{logger: logger, db: db}
}

// Name identifies the feature.
func (f *Feature) Name() string {
	return "ticketing"
}

// IsEnabled reports whether the feature can run. The snapshot store needs
// the database, so the feature stays off without one.
func (f *Feature) IsEnabled() bool {
	return f.db != nil
}

// Load wires the snapshot store, syncer and HTTP handler.
func (f *Feature) Load(app fiber.Router) error {
	snapshots, err := store.NewGormStore(f.db)
	if err != nil {
		return err
	}

	syncer := sync.NewSyncer(snapshots, f.logger)
	service := NewService(syncer, f.logger)
	NewHandler(service).RegisterRoutes(app)
	return nil
}
