package domain

import (
	"context"
	"time"
)

// VoteLedger exposes the two atomic store operations that carry the whole
// concurrency contract: a conditional insert that only one request per
// (slug, client) pair can win, and a counter upsert that is safe under
// concurrent winners for different clients.
type VoteLedger interface {
	// InsertIfAbsent records the vote unless a row for the same
	// (petition, client hash) pair already exists. Returns true when this
	// call created the row.
	InsertIfAbsent(ctx context.Context, vote Vote) (bool, error)
	// IncrementCounter creates the petition counter at 1 or bumps it by 1.
	IncrementCounter(ctx context.Context, slug Slug, now time.Time) error
	// Count returns the current like total, 0 for unknown petitions.
	Count(ctx context.Context, slug Slug) (int64, error)
}

// RateWindowStore persists fixed-window hit counters. IncrementOrReset
// upserts the row for key: same stored window start means hits+1, any
// other window start means the row is overwritten with hits=1. The hit
// count after the write is returned.
type RateWindowStore interface {
	IncrementOrReset(ctx context.Context, key RateKey, windowStart int64, now time.Time) (int64, error)
}

// CounterCache is an optional read-through cache in front of the counter
// table. Implementations treat cache failures as misses; the ledger stays
// the source of truth.
type CounterCache interface {
	Get(ctx context.Context, slug Slug) (int64, bool, error)
	Set(ctx context.Context, slug Slug, likes int64) error
}

type Clock interface {
	Now() time.Time
}

// LikeResult is what a POST reports back: the normalized slug, the
// aggregate total after the request, and whether this request was the
// first like from this client.
type LikeResult struct {
	PetitionSlug Slug
	Likes        int64
	Liked        bool
}

// LikeService is the application boundary the HTTP layer talks to.
type LikeService interface {
	Like(ctx context.Context, slug, clientToken, clientIP string) (LikeResult, error)
	Count(ctx context.Context, slug string) (Slug, int64, error)
}
