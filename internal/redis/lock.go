package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"limitedtracker/internal/logger"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// ScanLock is a best-effort distributed mutex built on SET NX PX.
type ScanLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

func NewScanLock(client *redis.Client, prefix string, ttl time.Duration, log *zap.Logger) *ScanLock {
	if log == nil {
		log = logger.L()
	}
	return &ScanLock{client: client, prefix: prefix, ttl: ttl, log: log}
}

// TryLock takes the lock for key without waiting. The returned release
// function is safe to call once the lock has expired.
func (l *ScanLock) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if l == nil || l.client == nil {
		return func() {}, true, nil
	}

	full := l.prefix + ":" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{full}, token).Err(); err != nil {
			l.log.Warn("failed to release scan lock", zap.String("key", full), zap.Error(err))
		}
	}
	return release, true, nil
}
