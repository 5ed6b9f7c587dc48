package redisx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrInFlight means another request holding the same idempotency key has
	// not finished yet.
	ErrInFlight = errors.New("request with this idempotency key is in progress")

	// ErrClaimLost means the pending claim expired and the key now belongs to
	// another request.
	ErrClaimLost = errors.New("idempotency claim no longer held")
)

// Only the holder of the pending token may resolve or drop the key.
var (
	completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])`)
)

// Idempotency remembers which order a (user, Idempotency-Key) pair produced.
type Idempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotency(rdb *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &Idempotency{rdb: rdb, ttl: ttl}
}

func idemKey(userID, key string) string {
	return fmt.Sprintf(KeyIdemOrderPlace, userID, key)
}

// Claim reserves the key for the caller and returns the token that Complete
// and Release need. When the key already resolved to an order, that order id
// is returned with an empty token.
func (s *Idempotency) Claim(ctx context.Context, userID, key string) (orderID, token string, err error) {
	k := idemKey(userID, key)
	token = pendingMarker + uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, k, token, TTLPending).Result()
	if err != nil {
		return "", "", err
	}
	if ok {
		return "", token, nil
	}

	v, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET, coba sekali lagi
		return s.Claim(ctx, userID, key)
	}
	if err != nil {
		return "", "", err
	}
	if strings.HasPrefix(v, pendingMarker) {
		return "", "", ErrInFlight
	}
	return v, "", nil
}

// Complete binds the claimed key to the order that was created.
func (s *Idempotency) Complete(ctx context.Context, userID, key, token, orderID string) error {
	n, err := completeScript.Run(ctx, s.rdb, []string{idemKey(userID, key)},
		token, orderID, s.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClaimLost
	}
	return nil
}

// Release drops a claim whose request failed so the client may retry. A claim
// already taken over by another request is left alone.
func (s *Idempotency) Release(ctx context.Context, userID, key, token string) error {
	n, err := releaseScript.Run(ctx, s.rdb, []string{idemKey(userID, key)}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrClaimLost
	}
	return nil
}
