package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/repository"
)

// WindowConfig tunes the sliding-window attempt store.
type WindowConfig struct {
	KeyPrefix string
	// TTL caps how long an identifier's attempt set survives without
	// activity. Should be at least as long as the largest window in use.
	TTL time.Duration
}

// AttemptStore keeps per-identifier attempt timestamps in Redis sorted
// sets, scored by nanosecond timestamps, so the transport layer can apply
// sliding-window throttling ahead of the credential checks.
type AttemptStore struct {
	client *redis.Client
	cfg    WindowConfig
}

// NewAttemptStore wires a sliding-window attempt store.
func NewAttemptStore(client *redis.Client, cfg WindowConfig) *AttemptStore {
	return &AttemptStore{client: client, cfg: cfg}
}

// RecordAttempt appends an attempt timestamp and refreshes the key TTL.
func (s *AttemptStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	nanos := at.UnixNano()

	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(nanos), Member: nanos}).Err(); err != nil {
		return storeErr("zadd", err)
	}

	if s.cfg.TTL > 0 {
		if err := s.client.Expire(ctx, key, s.cfg.TTL).Err(); err != nil {
			return storeErr("expire", err)
		}
	}

	return nil
}

// CountAttempts reports how many attempts fall inside the window ending at
// the reference instant.
func (s *AttemptStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	lo, hi := windowBounds(window, reference)
	count, err := s.client.ZCount(ctx, s.key(identifier), lo, hi).Result()
	if err != nil {
		return 0, storeErr("zcount", err)
	}

	return int(count), nil
}

// TrimWindow drops attempts that fell out of the window.
func (s *AttemptStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	lo, _ := windowBounds(window, reference)
	if err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", "("+lo).Err(); err != nil {
		return storeErr("zremrangebyscore", err)
	}

	return nil
}

// OldestAttempt yields the earliest attempt still inside the window; the
// boolean is false when the window holds no attempts.
func (s *AttemptStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	lo, hi := windowBounds(window, reference)
	members, err := s.client.ZRangeByScore(ctx, s.key(identifier), &redis.ZRangeBy{
		Min:   lo,
		Max:   hi,
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, storeErr("zrangebyscore", err)
	}
	if len(members) == 0 {
		return time.Time{}, false, nil
	}

	nanos, err := strconv.ParseInt(members[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}

	return time.Unix(0, nanos), true, nil
}

func (s *AttemptStore) key(identifier string) string {
	if s.cfg.KeyPrefix == "" {
		return identifier
	}
	return s.cfg.KeyPrefix + ":" + identifier
}

func windowBounds(window time.Duration, reference time.Time) (string, string) {
	lo := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	hi := strconv.FormatInt(reference.UnixNano(), 10)
	return lo, hi
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: redis %s: %v", repository.ErrUnavailable, op, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}

var _ port.RateLimitStore = (*AttemptStore)(nil)
