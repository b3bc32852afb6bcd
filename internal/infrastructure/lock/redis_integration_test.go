//go:build integration

package lock_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cartaporte-api/internal/domain"
	"github.com/jhoicas/cartaporte-api/internal/infrastructure/lock"
	"github.com/jhoicas/cartaporte-api/pkg/logger"
)

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL no definido")
	}
	ctx := context.Background()
	client, err := lock.NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	l := lock.NewRedisLocker(client, time.Minute, logger.Nop())
	doc := "it-" + time.Now().Format("150405.000000000")

	release, err := l.Acquire(ctx, doc)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, doc)
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	release()
	again, err := l.Acquire(ctx, doc)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiraPorTTL(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL no definido")
	}
	ctx := context.Background()
	client, err := lock.NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	l := lock.NewRedisLocker(client, 50*time.Millisecond, logger.Nop())
	doc := "ttl-" + time.Now().Format("150405.000000000")

	stale, err := l.Acquire(ctx, doc)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	fresh, err := l.Acquire(ctx, doc)
	require.NoError(t, err)
	stale() // no debe borrar el candado del nuevo dueño

	_, err = l.Acquire(ctx, doc)
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)
	fresh()
}
