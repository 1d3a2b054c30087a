package redis

import (
	"context"
	"sync"
	"time"

	"certexam-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// EngineRegistry keeps engines in process and marks client liveness in Redis
// so other instances and operators can see who is sitting an exam. The key
// TTL is refreshed each time the client's engine is looked up.
type EngineRegistry struct {
	client  *redis.Client
	ttl     time.Duration
	factory func(clientID string) *app.Engine

	mu      sync.RWMutex
	engines map[string]*app.Engine
}

func NewEngineRegistry(client *redis.Client, ttl time.Duration, factory func(clientID string) *app.Engine) *EngineRegistry {
	return &EngineRegistry{
		client:  client,
		ttl:     ttl,
		factory: factory,
		engines: make(map[string]*app.Engine),
	}
}

func (r *EngineRegistry) GetOrCreate(clientID string) *app.Engine {
	r.mu.Lock()
	engine, ok := r.engines[clientID]
	if !ok {
		engine = r.factory(clientID)
		r.engines[clientID] = engine
	}
	r.mu.Unlock()
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), key(clientID), "1", r.ttl).Err()
	return engine
}

func (r *EngineRegistry) Get(clientID string) (*app.Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[clientID]
	return engine, ok
}

func (r *EngineRegistry) Delete(clientID string) {
	r.mu.Lock()
	engine, ok := r.engines[clientID]
	delete(r.engines, clientID)
	r.mu.Unlock()
	if ok {
		engine.Reset()
	}
	_ = r.client.Del(context.Background(), key(clientID)).Err()
}

func key(clientID string) string {
	return "exam:engine:" + clientID
}
