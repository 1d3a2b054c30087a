package memory

import (
	"sync"

	"certexam-service/internal/app"
)

// EngineRegistry is an in-memory implementation of app.EngineRegistry.
type EngineRegistry struct {
	factory func(clientID string) *app.Engine

	mu      sync.RWMutex
	engines map[string]*app.Engine
}

// NewEngineRegistry creates engines on demand with factory.
func NewEngineRegistry(factory func(clientID string) *app.Engine) *EngineRegistry {
	return &EngineRegistry{
		factory: factory,
		engines: make(map[string]*app.Engine),
	}
}

func (r *EngineRegistry) GetOrCreate(clientID string) *app.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if engine, ok := r.engines[clientID]; ok {
		return engine
	}
	engine := r.factory(clientID)
	r.engines[clientID] = engine
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
}
