package domain

import (
	"time"
)

type (
	Slug       string
	ClientHash string
	RateKey    string
	VoteID     string
)

// LikeCounter holds the aggregate like total for one petition. The count
// always equals the number of rows in petition_votes for the same slug.
type LikeCounter struct {
	PetitionSlug Slug      `gorm:"column:petition_slug;type:text;primaryKey"`
	Likes        int64     `gorm:"column:likes;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Vote is the append-only ledger row for one accepted like. The
// (petition_slug, client_hash) pair is unique and the row is never updated
// or deleted. ClientHash is a one-way digest, raw tokens are never stored.
type Vote struct {
	ID           VoteID     `gorm:"column:id;type:char(26);primaryKey"`
	PetitionSlug Slug       `gorm:"column:petition_slug;type:text;not null;uniqueIndex:idx_votes_slug_client,priority:1"`
	ClientHash   ClientHash `gorm:"column:client_hash;type:char(64);not null;uniqueIndex:idx_votes_slug_client,priority:2"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// RateWindow is one fixed-window abuse counter. WindowStart is aligned to
// epoch boundaries; a request from a later window overwrites it and resets
// Hits to 1.
type RateWindow struct {
	RateKey     RateKey   `gorm:"column:rate_key;type:char(64);primaryKey"`
	WindowStart int64     `gorm:"column:window_start;not null"`
	Hits        int64     `gorm:"column:hits;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LikeCounter) TableName() string { return "like_counters" }

func (Vote) TableName() string { return "petition_votes" }

func (RateWindow) TableName() string { return "rate_windows" }
