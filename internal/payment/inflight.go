package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// InFlightGuard keeps a duplicate confirmation for the same (order, step)
// from opening a second gateway call while the first is still on the wire.
// The database conditional updates remain the source of truth for terminal
// effects; the guard only closes the window where both submissions would
// still see a pending record.
type InFlightGuard interface {
	Acquire(ctx context.Context, orderID, step string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, orderID, step string)
}

func guardKey(orderID, step string) string {
	return fmt.Sprintf("payment:inflight:%s:%s", orderID, step)
}

type redisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) InFlightGuard {
	return &redisGuard{client: client}
}

func (g *redisGuard) Acquire(ctx context.Context, orderID, step string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(orderID, step), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire in-flight guard: %w", err)
	}
	return ok, nil
}

func (g *redisGuard) Release(ctx context.Context, orderID, step string) {
	g.client.Del(ctx, guardKey(orderID, step))
}

type memoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewMemoryGuard is the in-process fallback for deployments without redis
// and for tests. Single-process only.
func NewMemoryGuard() InFlightGuard {
	return &memoryGuard{held: make(map[string]time.Time)}
}

func (g *memoryGuard) Acquire(_ context.Context, orderID, step string, ttl time.Duration) (bool, error) {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(orderID, step)
	if exp, ok := g.held[key]; ok && exp.After(now) {
		return false, nil
	}
	g.held[key] = now.Add(ttl)
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, orderID, step string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, guardKey(orderID, step))
}
