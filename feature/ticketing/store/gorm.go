package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticketing-sync/feature/ticketing/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SerieSnapshot is the stored form of one serie wrapper. The canonical
// wrapper is kept as a JSON payload: the engine only ever replaces and
// diffs whole wrappers, so a relational breakdown would buy nothing.
type SerieSnapshot struct {
	ID             uint      `gorm:"primaryKey"`
	OrganizationID string    `gorm:"size:64;uniqueIndex:idx_org_serie;not null"`
	SerieID        string    `gorm:"size:190;uniqueIndex:idx_org_serie;not null"`
	Payload        []byte    `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// SyncWatermark records per organization the point up to which everything
// is already synchronized.
type SyncWatermark struct {
	OrganizationID string    `gorm:"primaryKey;size:64"`
	LastSyncAt     time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// GormStore is the gorm-backed SnapshotStore implementation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the snapshot tables and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SerieSnapshot{}, &SyncWatermark{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// LoadWrappers returns the organization's stored wrappers keyed by serie ID.
func (s *GormStore) LoadWrappers(ctx context.Context, organizationID string) (map[string]models.EventSerieWrapper, error) {
	var rows []SerieSnapshot
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	wrappers := make(map[string]models.EventSerieWrapper, len(rows))
	for _, row := range rows {
		var wrapper models.EventSerieWrapper
		if err := json.Unmarshal(row.Payload, &wrapper); err != nil {
			return nil, fmt.Errorf("decode snapshot for serie %s: %w", row.SerieID, err)
		}
		wrappers[row.SerieID] = wrapper
	}
	return wrappers, nil
}

// SaveWrapper upserts the wrapper for its serie.
func (s *GormStore) SaveWrapper(ctx context.Context, organizationID string, wrapper models.EventSerieWrapper) error {
	payload, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("encode snapshot for serie %s: %w", wrapper.Serie.InternalTicketingSystemID, err)
	}

	row := SerieSnapshot{
		OrganizationID: organizationID,
		SerieID:        wrapper.Serie.InternalTicketingSystemID,
		Payload:        payload,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}, {Name: "serie_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
}

// LastSyncAt returns the organization's watermark, zero when never synced.
func (s *GormStore) LastSyncAt(ctx context.Context, organizationID string) (time.Time, error) {
	var row SyncWatermark
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return row.LastSyncAt, nil
}

// SetLastSyncAt upserts the organization's watermark.
func (s *GormStore) SetLastSyncAt(ctx context.Context, organizationID string, at time.Time) error {
	row := SyncWatermark{OrganizationID: organizationID, LastSyncAt: at}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_sync_at", "updated_at"}),
		}).
		Create(&row).Error
}
