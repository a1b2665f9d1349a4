// Package migrations owns schema creation: the versioned gormigrate steps
// and the per-process bootstrap guard that lazily applies them.
package migrations

import (
	"context"
	"fmt"
	"sync"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/ridersalliance/petition-likes/internal/domain"
)

// Run applies all pending migrations. Each step is idempotent (AutoMigrate
// only adds what is missing), so re-running against a half-initialized
// schema is safe.
func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_init_likes_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&domain.LikeCounter{}, &domain.Vote{}, &domain.RateWindow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("rate_windows", "petition_votes", "like_counters")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply failed: %w", err)
	}

	return nil
}

// Bootstrapper collapses concurrent first requests into a single schema
// bootstrap attempt. The first caller runs the migrations while the rest
// block on the mutex; success is latched for the life of the process, a
// failure leaves the guard unset so the next request retries instead of
// wedging the process.
type Bootstrapper struct {
	mu   sync.Mutex
	done bool
	db   *gorm.DB
	run  func(*gorm.DB) error
}

func NewBootstrapper(db *gorm.DB) *Bootstrapper {
	return &Bootstrapper{db: db, run: Run}
}

// Ensure guarantees the schema exists before the caller touches storage.
func (b *Bootstrapper) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	db := b.db
	if db != nil {
		db = db.WithContext(ctx)
	}
	if err := b.run(db); err != nil {
		return err
	}
	b.done = true
	return nil
}
