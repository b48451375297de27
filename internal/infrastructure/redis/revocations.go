package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokensKey = "revoked_tokens"

// RevocationStore is the logout denylist: a sorted set of raw token values
// scored by the instant the revocation itself may be forgotten.
type RevocationStore struct {
	redis redis.UniversalClient
	key   string
}

func NewRevocationStore(client redis.UniversalClient) *RevocationStore {
	return &RevocationStore{redis: client, key: revokedTokensKey}
}

// Insert revokes token until expiresAt. Re-inserting overwrites the expiry.
func (s *RevocationStore) Insert(ctx context.Context, token string, expiresAt time.Time) error {
	err := s.redis.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: token,
	}).Err()
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Exists reports whether token has been revoked and not yet purged.
func (s *RevocationStore) Exists(ctx context.Context, token string) (bool, error) {
	_, err := s.redis.ZScore(ctx, s.key, token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}

// DeleteExpired purges revocations whose expiry is before now and returns
// how many were removed.
func (s *RevocationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	max := "(" + strconv.FormatInt(now.Unix(), 10)
	n, err := s.redis.ZRemRangeByScore(ctx, s.key, "-inf", max).Result()
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	return n, nil
}
