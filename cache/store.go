package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable wraps Redis failures on ledger operations, where the
	// cache is authoritative and the caller must fail closed.
	ErrUnavailable = errors.New("redis unavailable")
	// ErrRefreshMissing is returned when a token id has no live ledger
	// entry: never issued, naturally expired, or revoked at sign-out.
	ErrRefreshMissing = errors.New("refresh record not found")
	// ErrRefreshReplayed is returned when the used-marker for a token id is
	// present: this exact token was already consumed once before.
	ErrRefreshReplayed = errors.New("refresh record already consumed")
)

// User is the cached projection of an account record, keyed by subject id.
// It never contains the password hash.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsSuspended     bool      `json:"isSuspended"`
	IsDeleted       bool      `json:"isDeleted"`
	LastLogin       time.Time `json:"lastLogin"`
	CreatedAt       time.Time `json:"createdAt"`
}

const (
	consumeStatusMissing  int64 = 0
	consumeStatusConsumed int64 = 1
	consumeStatusReplayed int64 = 2
)

// KEYS[1] = live ledger entry, KEYS[2] = used marker, ARGV[1] = marker TTL ms.
// The marker is checked first: if a previous rotation crashed between marker
// write and companion delete, a retried token is rejected, not honored.
const consumeRefreshScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  redis.call("DEL", KEYS[1])
  return {2}
end
local live = redis.call("GET", KEYS[1])
if not live then
  return {0}
end
redis.call("SET", KEYS[2], "1", "PX", ARGV[1])
redis.call("DEL", KEYS[1])
return {1, live}
`

var consumeRefreshLua = redis.NewScript(consumeRefreshScript)

// Store is the Redis session cache. All coordination is pushed to Redis
// atomic primitives; Store holds no mutable in-process state.
type Store struct {
	redis         redis.UniversalClient
	prefix        string
	usedMarkerTTL time.Duration
}

// NewStore creates a Store on the given client. prefix namespaces all keys;
// usedMarkerTTL bounds the replay-detection marker.
func NewStore(client redis.UniversalClient, prefix string, usedMarkerTTL time.Duration) *Store {
	if usedMarkerTTL <= 0 {
		usedMarkerTTL = 5 * time.Minute
	}
	return &Store{
		redis:         client,
		prefix:        prefix,
		usedMarkerTTL: usedMarkerTTL,
	}
}

func (s *Store) userKey(subjectID string) string {
	return s.prefix + ":u:" + subjectID
}

func (s *Store) refreshKey(tokenID string) string {
	return s.prefix + ":r:" + tokenID
}

func (s *Store) usedKey(tokenID string) string {
	return s.prefix + ":used:" + tokenID
}

// GetUser returns the cached projection for a subject id. Any failure,
// whether an absent key, a decode error, or Redis being unreachable, is
// reported as a miss.
func (s *Store) GetUser(ctx context.Context, subjectID string) (*User, bool) {
	data, err := s.redis.Get(ctx, s.userKey(subjectID)).Bytes()
	if err != nil {
		return nil, false
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		// Corrupt entry: drop it so the next read repopulates.
		_ = s.redis.Del(ctx, s.userKey(subjectID)).Err()
		return nil, false
	}
	return &user, true
}

// SetUser stores a projection with the given TTL. Best-effort: the returned
// error is informational and safe to ignore.
func (s *Store) SetUser(ctx context.Context, user *User, ttl time.Duration) error {
	if user == nil || user.ID == "" {
		return errors.New("user projection requires an id")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.userKey(user.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteUser invalidates a cached projection. Best-effort.
func (s *Store) DeleteUser(ctx context.Context, subjectID string) error {
	if err := s.redis.Del(ctx, s.userKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RegisterRefresh records a freshly issued token id as live, mapping it to
// its subject with a TTL matching the token's expiry.
func (s *Store) RegisterRefresh(ctx context.Context, tokenID, subjectID string, ttl time.Duration) error {
	if tokenID == "" || subjectID == "" {
		return errors.New("refresh record requires token id and subject id")
	}
	if err := s.redis.Set(ctx, s.refreshKey(tokenID), subjectID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ConsumeRefresh atomically transitions a token id from live to consumed and
// returns the subject it was issued to. At most one concurrent caller
// observes success; the others get [ErrRefreshReplayed] (used-marker hit) or
// [ErrRefreshMissing] (companion already gone).
func (s *Store) ConsumeRefresh(ctx context.Context, tokenID string) (string, error) {
	result, err := consumeRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.refreshKey(tokenID), s.usedKey(tokenID)},
		s.usedMarkerTTL.Milliseconds(),
	).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("%w: invalid consume script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return "", fmt.Errorf("%w: invalid consume script status", ErrUnavailable)
	}

	switch code {
	case consumeStatusMissing:
		return "", ErrRefreshMissing
	case consumeStatusReplayed:
		return "", ErrRefreshReplayed
	case consumeStatusConsumed:
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: missing consume payload", ErrUnavailable)
		}
		switch v := parts[1].(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return "", fmt.Errorf("%w: invalid consume payload", ErrUnavailable)
		}
	default:
		return "", fmt.Errorf("%w: unknown consume script status", ErrUnavailable)
	}
}

// RevokeRefresh deletes a live ledger entry without writing a used marker.
// Used at sign-out, where replay detection for the revoked token has no
// security value.
func (s *Store) RevokeRefresh(ctx context.Context, tokenID string) error {
	if err := s.redis.Del(ctx, s.refreshKey(tokenID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports point-in-time Redis availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
