package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ridersalliance/petition-likes/internal/domain"
	"github.com/ridersalliance/petition-likes/internal/platform/metrics"
)

// RateWindowRepository persists fixed-window hit counters in the shared
// store so rate limiting works identically across stateless replicas.
type RateWindowRepository struct {
	db *gorm.DB
}

func NewRateWindowRepository(db *gorm.DB) *RateWindowRepository {
	return &RateWindowRepository{db: db}
}

type rateWindowModel struct {
	RateKey     string    `gorm:"column:rate_key;primaryKey"`
	WindowStart int64     `gorm:"column:window_start"`
	Hits        int64     `gorm:"column:hits"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (rateWindowModel) TableName() string {
	return "rate_windows"
}

// IncrementOrReset upserts the window row in one statement: a hit inside
// the stored window increments, a hit from any other window resets to 1.
// The CASE reads the pre-update row, so the decision and the write are a
// single atomic store operation.
func (r *RateWindowRepository) IncrementOrReset(ctx context.Context, key domain.RateKey, windowStart int64, now time.Time) (int64, error) {
	started := time.Now()
	model := rateWindowModel{
		RateKey:     string(key),
		WindowStart: windowStart,
		Hits:        1,
		UpdatedAt:   now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rate_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				// Unqualified columns in DO UPDATE read the pre-update row
				// on both Postgres and SQLite.
				"hits":         gorm.Expr("CASE WHEN window_start = ? THEN hits + 1 ELSE 1 END", windowStart),
				"window_start": windowStart,
				"updated_at":   now,
			}),
		}).
		Create(&model).Error
	if err != nil {
		metrics.ObserveStoreDuration(time.Since(started).Seconds())
		return 0, fmt.Errorf("gorm rate window: upsert: %w", err)
	}

	var stored rateWindowModel
	err = r.db.WithContext(ctx).
		Where("rate_key = ?", string(key)).
		First(&stored).Error
	metrics.ObserveStoreDuration(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Row vanished between upsert and read; treat as a fresh window.
			return 1, nil
		}
		return 0, fmt.Errorf("gorm rate window: read back: %w", err)
	}

	return stored.Hits, nil
}

var _ domain.RateWindowStore = (*RateWindowRepository)(nil)
