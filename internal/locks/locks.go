package locks

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/internal/utils"
)

// Locker hands out named, expiring locks. Acquire reports false when the key is held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient) Locker {
	return &redisLocker{client: client, prefix: "mailpipe:lock:"}
}

// NewRedisLockerFromURL parses a redis:// URL.
func NewRedisLockerFromURL(redisURL string) (Locker, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid redis url")
	}
	client := redis.NewClient(opts)
	return NewRedisLocker(client), client, nil
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "redisLocker.Acquire")
	defer span.Finish()
	span.SetTag("lock.key", key)

	token := utils.GenerateNanoIDWithPrefix("lock", 16)
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrapf(err, "failed to acquire lock %s", key)
	}
	span.LogKV("acquired", ok)
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker guards keys within this process only.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]time.Time)}
}

func (l *localLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return nil, false, nil
	}
	expiresAt := now.Add(ttl)
	l.held[key] = expiresAt

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key] == expiresAt {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
