package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/platform"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// Locker is a short-TTL mutual exclusion lease per (domain,label). It
// narrows — not closes — the window between the availability check and the
// hold write. Without one the race is accepted and documented.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with SET NX plus a token-checked delete,
// so an expired lock is never released out from under its next holder.
type RedisLocker struct {
	client *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := platform.NewID()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("acquire lock %s: %w", key, err))
	}
	if !ok {
		// Another lease for the same name is in flight.
		return nil, zelferr.ErrTagAlreadyExists
	}

	release := func() {
		// Best effort: an unreleased lock lapses with its TTL.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
