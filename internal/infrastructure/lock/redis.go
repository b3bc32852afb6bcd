package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

const keyPrefix = "cartaporte:lock:doc:"

// releaseScript borra la llave solo si el token sigue siendo el nuestro.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker candado compartido entre réplicas (SET NX PX). El TTL debe cubrir la
// corrida completa de reintentos; al vencer, otro proceso puede tomar el documento.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisLocker crea el candado sobre un cliente ya conectado.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLocker{client: client, ttl: ttl, log: log.Component("lock")}
}

// Acquire toma el candado o devuelve domain.ErrOperationInFlight.
func (l *RedisLocker) Acquire(ctx context.Context, documentID string) (func(), error) {
	key := keyPrefix + documentID
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: redis SETNX: %w", err)
	}
	if !ok {
		return nil, domain.ErrOperationInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// El llamador pudo haber cancelado ctx; liberar igual.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				l.log.Warn().Err(err).Str("document_id", documentID).Msg("no se pudo liberar el candado; expirará por TTL")
			}
		})
	}, nil
}

// NewRedisClient conecta a partir de REDIS_URL y verifica con PING.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
