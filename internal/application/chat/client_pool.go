package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nurcrm/backend/internal/domain/chat"
)

// ClientPool keeps at most one live external client per account. Construction
// is serialized through singleflight so a burst of concurrent callers for the
// same account shares a single factory run and its result.
type ClientPool struct {
	mu      sync.RWMutex
	clients map[chat.AccountKey]chat.Client
	group   singleflight.Group
	logger  *zap.Logger
}

// ClientPoolOption configures a ClientPool
type ClientPoolOption func(*ClientPool)

// WithPoolLogger sets the pool logger
func WithPoolLogger(logger *zap.Logger) ClientPoolOption {
	return func(p *ClientPool) {
		p.logger = logger
	}
}

// NewClientPool creates an empty pool
func NewClientPool(opts ...ClientPoolOption) *ClientPool {
	p := &ClientPool{
		clients: make(map[chat.AccountKey]chat.Client),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the live client for the key without constructing one
func (p *ClientPool) Get(key chat.AccountKey) (chat.Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	client, ok := p.clients[key]
	return client, ok
}

// GetOrCreate returns the cached client or builds one via build. Concurrent
// calls for the same key are collapsed into a single build; every caller
// receives the same client or the same error.
func (p *ClientPool) GetOrCreate(ctx context.Context, key chat.AccountKey, build func(ctx context.Context) (chat.Client, error)) (chat.Client, error) {
	if client, ok := p.Get(key); ok {
		return client, nil
	}

	result, err, _ := p.group.Do(key.String(), func() (any, error) {
		// Another flight may have installed the client between the fast
		// path and acquiring the flight.
		if client, ok := p.Get(key); ok {
			return client, nil
		}

		client, err := build(ctx)
		if err != nil {
			return nil, err
		}

		p.Install(key, client)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(chat.Client), nil
}

// Install stores a ready client for the key, closing any client it replaces
func (p *ClientPool) Install(key chat.AccountKey, client chat.Client) {
	p.mu.Lock()
	previous := p.clients[key]
	p.clients[key] = client
	p.mu.Unlock()

	if previous != nil && previous != client {
		if err := previous.Close(); err != nil {
			p.logger.Warn("failed to close replaced client",
				zap.String("account", key.String()),
				zap.Error(err))
		}
	}
}

// Evict removes and closes the client for the key; absent keys are a no-op
func (p *ClientPool) Evict(key chat.AccountKey) {
	p.mu.Lock()
	client, ok := p.clients[key]
	delete(p.clients, key)
	p.mu.Unlock()

	if !ok {
		return
	}
	if err := client.Close(); err != nil {
		p.logger.Warn("failed to close evicted client",
			zap.String("account", key.String()),
			zap.Error(err))
	}
}

// Probe checks liveness of the pooled client and evicts it on failure. An
// absent client is reported as chat.ErrSessionExpired.
func (p *ClientPool) Probe(ctx context.Context, key chat.AccountKey) error {
	client, ok := p.Get(key)
	if !ok {
		return chat.ErrSessionExpired
	}
	if err := client.Probe(ctx); err != nil {
		p.logger.Info("pooled client failed probe, evicting",
			zap.String("account", key.String()),
			zap.Error(err))
		p.Evict(key)
		return err
	}
	return nil
}

// Size returns the number of live clients
func (p *ClientPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Shutdown closes every pooled client
func (p *ClientPool) Shutdown() {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[chat.AccountKey]chat.Client)
	p.mu.Unlock()

	for key, client := range clients {
		if err := client.Close(); err != nil {
			p.logger.Warn("failed to close client during shutdown",
				zap.String("account", key.String()),
				zap.Error(err))
		}
	}
}
