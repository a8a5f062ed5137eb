package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"infinity_stones/internal/errs"
)

const keyPrefix = "cascade:lock:"

// снимаем только свою аренду
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis аренда SET NX PX между несколькими процессами.
// ttl должен быть больше худшего времени спина с коммитом
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		retry:  20 * time.Millisecond,
		logger: logger,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.WrapLevel(errs.Warn, errs.ErrSessionBusy, ctx.Err().Error())
			}
			return nil, errs.Wrap(err, "redis lock")
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errs.WrapLevel(errs.Warn, errs.ErrSessionBusy, ctx.Err().Error())
		case <-ticker.C:
		}
	}

	return r.release(key, token), nil
}

// release повторные и параллельные вызовы снимают аренду один раз
func (r *Redis) release(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.unlock(key, token) })
	}
}

func (r *Redis) unlock(key, token string) {
	// контекст запроса мог уже истечь
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
		r.logger.Warn("redis unlock failed", zap.String("key", key), zap.Error(err))
	}
}
