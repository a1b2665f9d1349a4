// Package likes implements the business rules of the petition-likes
// service: validation, per-client vote uniqueness and fixed-window rate
// limiting, all coordinated through atomic store operations.
package likes

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/ridersalliance/petition-likes/internal/domain"
	"github.com/ridersalliance/petition-likes/internal/platform/ids"
)

var (
	ErrInvalidSlug     = errors.New("invalid petition slug")
	ErrInvalidClientID = errors.New("missing or invalid client identifier")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)
)

// UnknownIP is the shared rate-limit bucket for requests that arrive
// without the trusted client-IP header. Degraded on purpose: such clients
// throttle each other instead of crashing the request.
const UnknownIP = "unknown"

// RatePolicy is the fixed-window limit applied per (slug, ip, client)
// triple. MaxRequests <= 0 disables limiting.
type RatePolicy struct {
	WindowSeconds int
	MaxRequests   int
}

// Service wires the ledger, the rate-window store and the optional
// counter cache behind the like/count operations.
type Service struct {
	ledger domain.VoteLedger
	rates  domain.RateWindowStore
	cache  domain.CounterCache
	clock  domain.Clock
	ids    *ids.Generator
	policy RatePolicy
}

func NewService(
	ledger domain.VoteLedger,
	rates domain.RateWindowStore,
	cache domain.CounterCache,
	clock domain.Clock,
	idsGen *ids.Generator,
	policy RatePolicy,
) *Service {
	if idsGen == nil {
		idsGen = ids.DefaultGenerator()
	}
	return &Service{
		ledger: ledger,
		rates:  rates,
		cache:  cache,
		clock:  clock,
		ids:    idsGen,
		policy: policy,
	}
}

// NormalizeSlug lowercases the raw path segment and checks the
// single-segment hyphenated shape.
func NormalizeSlug(raw string) (domain.Slug, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !slugPattern.MatchString(normalized) {
		return "", ErrInvalidSlug
	}
	return domain.Slug(normalized), nil
}

func validateClientToken(token string) error {
	if !clientIDPattern.MatchString(token) {
		return ErrInvalidClientID
	}
	return nil
}

// Count returns the current like total for a petition. Petitions nobody
// liked yet read as zero, never as an error.
func (s *Service) Count(ctx context.Context, slug string) (domain.Slug, int64, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return "", 0, err
	}

	if s.cache != nil {
		if cached, ok, cacheErr := s.cache.Get(ctx, normalized); cacheErr == nil && ok {
			return normalized, cached, nil
		}
		// Cache trouble is a miss, not a failure.
	}

	total, err := s.ledger.Count(ctx, normalized)
	if err != nil {
		return "", 0, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, normalized, total)
	}

	return normalized, total, nil
}

// Like records at most one like per (petition, client) pair and reports
// the aggregate afterwards. A duplicate like is a normal outcome: the
// caller gets Liked=false and the unchanged total. A throttled request
// returns ErrRateLimited alongside a result that still carries the
// current total so the response can include it.
func (s *Service) Like(ctx context.Context, slug, clientToken, clientIP string) (domain.LikeResult, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return domain.LikeResult{}, err
	}
	if err := validateClientToken(clientToken); err != nil {
		return domain.LikeResult{}, err
	}
	if clientIP == "" {
		clientIP = UnknownIP
	}

	now := s.clock.Now()

	if s.rates != nil && s.policy.MaxRequests > 0 && s.policy.WindowSeconds > 0 {
		// Windows align to epoch boundaries, not to the first request.
		window := int64(s.policy.WindowSeconds)
		windowStart := now.Unix() - now.Unix()%window

		key := RateKeyFor(normalized, clientIP, clientToken)
		hits, err := s.rates.IncrementOrReset(ctx, key, windowStart, now)
		if err != nil {
			return domain.LikeResult{}, err
		}
		// The request reaching exactly MaxRequests is still served.
		if hits > int64(s.policy.MaxRequests) {
			total, countErr := s.ledger.Count(ctx, normalized)
			if countErr != nil {
				return domain.LikeResult{}, countErr
			}
			return domain.LikeResult{PetitionSlug: normalized, Likes: total}, ErrRateLimited
		}
	}

	vote := domain.Vote{
		ID:           domain.VoteID(s.ids.New()),
		PetitionSlug: normalized,
		ClientHash:   HashClientToken(clientToken),
		CreatedAt:    now,
	}

	wasNew, err := s.ledger.InsertIfAbsent(ctx, vote)
	if err != nil {
		return domain.LikeResult{}, err
	}

	if wasNew {
		if err := s.ledger.IncrementCounter(ctx, normalized, now); err != nil {
			return domain.LikeResult{}, err
		}
	}

	total, err := s.ledger.Count(ctx, normalized)
	if err != nil {
		return domain.LikeResult{}, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, normalized, total)
	}

	return domain.LikeResult{PetitionSlug: normalized, Likes: total, Liked: wasNew}, nil
}

// RetryAfterSeconds is the back-off hint attached to throttled responses.
func (s *Service) RetryAfterSeconds() int {
	return s.policy.WindowSeconds
}

var _ domain.LikeService = (*Service)(nil)
