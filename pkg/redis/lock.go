package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out best-effort mutual exclusion across processes with
// SET NX PX. It guards periodic jobs that must not run twice at once.
type Locker struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewLocker(rdb goredis.UniversalClient, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Lock is a held lock.
type Lock struct {
	l     *Locker
	key   string
	token string
}

// TryAcquire takes the lock for ttl. It returns nil and no error when
// someone else holds it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{l: l, key: key, token: token}, nil
}

func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.l.rdb, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}
