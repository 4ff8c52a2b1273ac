package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jeffschecter/Signal/internal/db"
	svcErr "github.com/jeffschecter/Signal/internal/errors"
)

// GardenRepository provides data access for a user's garden: the garden
// anchor row, its three roses and the watering log.
type GardenRepository struct {
	db   *gorm.DB
	lock bool
}

// NewGardenRepository creates a new repository bound to the given DB connection.
func NewGardenRepository(database *gorm.DB) *GardenRepository {
	return &GardenRepository{db: database}
}

// ForUpdate returns a copy whose reads lock the rows they return.
func (r *GardenRepository) ForUpdate() *GardenRepository {
	return &GardenRepository{db: r.db, lock: true}
}

// Create plants a new garden. roses must hold exactly RoseCount entries.
func (r *GardenRepository) Create(ctx context.Context, garden *db.Garden, roses []db.Rose) error {
	if len(roses) != db.RoseCount {
		return svcErr.InvalidArgument("a garden holds %d roses, got %d", db.RoseCount, len(roses))
	}
	q := r.db.WithContext(ctx)
	if err := q.Create(garden).Error; err != nil {
		return err
	}
	return q.Create(&roses).Error
}

// Roses returns the user's roses ordered by id. A garden with a missing
// rose is reported as not found.
func (r *GardenRepository) Roses(ctx context.Context, uid uint64) ([]db.Rose, error) {
	var roses []db.Rose
	if err := lockingQuery(ctx, r.db, r.lock).
		Where("user_id = ?", uid).
		Order("rose_id ASC").
		Find(&roses).Error; err != nil {
		return nil, err
	}
	if len(roses) != db.RoseCount {
		return nil, svcErr.NotFound(db.Garden{UserID: uid}.Key())
	}
	return roses, nil
}

// Rose loads one rose.
func (r *GardenRepository) Rose(ctx context.Context, uid uint64, roseID int) (*db.Rose, error) {
	var rose db.Rose
	if err := lockingQuery(ctx, r.db, r.lock).
		Take(&rose, "user_id = ? AND rose_id = ?", uid, roseID).Error; err != nil {
		return nil, notFound(err, db.Rose{UserID: uid, RoseID: roseID}.Key())
	}
	return &rose, nil
}

// SaveRose writes a replanted or watered rose.
func (r *GardenRepository) SaveRose(ctx context.Context, rose *db.Rose) error {
	return r.db.WithContext(ctx).Save(rose).Error
}

// CreateWatering appends to the watering log.
func (r *GardenRepository) CreateWatering(ctx context.Context, w *db.Watering) error {
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		return fmt.Errorf("create watering for user %d: %w", w.UserID, err)
	}
	return nil
}

// WateredSince reports whether the user watered at or after since.
func (r *GardenRepository) WateredSince(ctx context.Context, uid uint64, since time.Time) (bool, error) {
	var w db.Watering
	err := r.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND timestamp >= ?", uid, since).
		Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}
