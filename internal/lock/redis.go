package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "swaprelayer:lock:"

// unlockScript deletes key only if it still holds the token this holder
// set, so a lock that outlived its TTL and was reacquired by someone else
// is never torn down out from under them.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is the distributed Locker for multi-replica deployments: a
// SET key token NX PX acquire paired with a Lua compare-and-delete
// release, so two coordinator replicas never interleave transitions on the
// same order-id.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
	prefix string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, prefix string) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLocker{client: client, ttl: ttl, poll: 50 * time.Millisecond, prefix: prefix}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.prefix + key
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			var once bool
			return func() {
				if once {
					return
				}
				once = true
				unlockScript.Run(context.Background(), l.client, []string{redisKey}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
