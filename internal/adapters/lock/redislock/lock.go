package redislock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("lock not held by this owner")

const DefaultTTL = 2 * time.Minute

// solo borra si el valor sigue siendo el nuestro
const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// client es el subconjunto de *redis.Client que usamos.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// CycleLock garantiza que un solo proceso del despliegue ejecute el ciclo
// del scheduler a la vez. El TTL acota cuánto dura el lock si el dueño muere.
type CycleLock struct {
	rdb client
	key string
	ttl time.Duration

	mu    sync.Mutex
	value string
}

func New(rdb client, name string, ttl time.Duration) *CycleLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CycleLock{
		rdb: rdb,
		key: "medreminders:lock:" + strings.TrimSpace(name),
		ttl: ttl,
	}
}

// NewClient arma el cliente go-redis desde la config.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (l *CycleLock) TryLock(ctx context.Context) (bool, error) {
	value := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.value = value
	l.mu.Unlock()
	return true, nil
}

func (l *CycleLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	value := l.value
	l.value = ""
	l.mu.Unlock()

	if value == "" {
		return ErrLockNotHeld
	}

	n, err := l.rdb.Eval(ctx, unlockScript, []string{l.key}, value).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
