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

// LedgerRepository persists votes and the per-petition counter. All
// coordination between replicas happens inside the two ON CONFLICT
// statements below; there is no application-level locking.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

type voteModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	PetitionSlug string    `gorm:"column:petition_slug;uniqueIndex:idx_votes_slug_client,priority:1"`
	ClientHash   string    `gorm:"column:client_hash;uniqueIndex:idx_votes_slug_client,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "petition_votes"
}

type counterModel struct {
	PetitionSlug string    `gorm:"column:petition_slug;primaryKey"`
	Likes        int64     `gorm:"column:likes"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (counterModel) TableName() string {
	return "like_counters"
}

// InsertIfAbsent races on the (petition_slug, client_hash) unique index.
// DO NOTHING means the loser of a duplicate race sees zero affected rows
// rather than an error, which is exactly the wasNewLike signal.
func (r *LedgerRepository) InsertIfAbsent(ctx context.Context, vote domain.Vote) (bool, error) {
	started := time.Now()
	model := voteModel{
		ID:           string(vote.ID),
		PetitionSlug: string(vote.PetitionSlug),
		ClientHash:   string(vote.ClientHash),
		CreatedAt:    vote.CreatedAt,
	}

	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "petition_slug"}, {Name: "client_hash"}},
			DoNothing: true,
		}).
		Create(&model)
	metrics.ObserveStoreDuration(time.Since(started).Seconds())
	if tx.Error != nil {
		return false, fmt.Errorf("gorm ledger: insert vote: %w", tx.Error)
	}

	return tx.RowsAffected == 1, nil
}

// IncrementCounter creates the counter row at 1 or bumps the stored value.
// The arithmetic runs inside the upsert so concurrent winners for
// different clients never lose updates.
func (r *LedgerRepository) IncrementCounter(ctx context.Context, slug domain.Slug, now time.Time) error {
	started := time.Now()
	model := counterModel{
		PetitionSlug: string(slug),
		Likes:        1,
		UpdatedAt:    now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "petition_slug"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"likes":      gorm.Expr("likes + 1"),
				"updated_at": now,
			}),
		}).
		Create(&model).Error
	metrics.ObserveStoreDuration(time.Since(started).Seconds())
	if err != nil {
		return fmt.Errorf("gorm ledger: bump counter: %w", err)
	}
	return nil
}

// Count reads the aggregate, treating a missing row as zero and clamping
// anything negative the store might hand back.
func (r *LedgerRepository) Count(ctx context.Context, slug domain.Slug) (int64, error) {
	started := time.Now()
	var model counterModel
	err := r.db.WithContext(ctx).
		Where("petition_slug = ?", string(slug)).
		First(&model).Error
	metrics.ObserveStoreDuration(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("gorm ledger: read counter: %w", err)
	}

	if model.Likes < 0 {
		return 0, nil
	}
	return model.Likes, nil
}

var _ domain.VoteLedger = (*LedgerRepository)(nil)
