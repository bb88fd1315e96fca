package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
)

// ConnectionManagerConfig holds configuration for the connection manager.
type ConnectionManagerConfig struct {
	TTLMinutes int
}

// ConnectionManager caches live adapters per datasource with TTL-based
// expiry and a background cleanup goroutine.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*managedAdapter // key: datasource ID
	ttl         time.Duration
	stopped     bool
	stopChan    chan struct{}
	logger      *zap.Logger
}

type managedAdapter struct {
	adapter  Adapter
	lastUsed time.Time
	mu       sync.Mutex
}

// NewConnectionManager creates a connection manager and starts its cleanup
// goroutine, which runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}

	manager := &ConnectionManager{
		connections: make(map[string]*managedAdapter),
		ttl:         time.Duration(cfg.TTLMinutes) * time.Minute,
		stopChan:    make(chan struct{}),
		logger:      logger.Named("connmgr"),
	}

	go manager.cleanupExpired()
	return manager
}

// GetOrCreate returns a live adapter for the datasource, reusing a cached
// one when it is still healthy and creating a new one otherwise.
func (m *ConnectionManager) GetOrCreate(ctx context.Context, ds *models.Datasource) (Adapter, error) {
	key := ds.ID.String()

	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := managed.adapter.TestConnection(healthCtx)
		cancel()

		if err != nil {
			m.logger.Warn("cached connection unhealthy, recreating",
				zap.String("datasourceID", key),
				zap.Error(err),
			)
			managed.mu.Unlock()
			m.remove(key)
			return m.create(ctx, key, ds)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.adapter, nil
	}

	return m.create(ctx, key, ds)
}

// create builds a new adapter via the registry factory.
// Caller must NOT hold any locks.
func (m *ConnectionManager) create(ctx context.Context, key string, ds *models.Datasource) (Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.adapter, nil
	}

	factory := GetFactory(ds.DatasourceType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type %q", ds.DatasourceType)
	}

	adapter, err := factory(ctx, ds.Config, m.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to datasource %s: %w", key, err)
	}

	m.connections[key] = &managedAdapter{
		adapter:  adapter,
		lastUsed: time.Now(),
	}

	m.logger.Info("created datasource connection",
		zap.String("datasourceID", key),
		zap.String("type", ds.DatasourceType),
	)

	return adapter, nil
}

// Invalidate closes and drops the cached adapter for a datasource.
func (m *ConnectionManager) Invalidate(datasourceID string) {
	m.remove(datasourceID)
}

func (m *ConnectionManager) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed != nil {
		if managed.adapter != nil {
			_ = managed.adapter.Close()
		}
		delete(m.connections, key)
		m.logger.Debug("removed connection", zap.String("datasourceID", key))
	}
}

func (m *ConnectionManager) cleanupExpired() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	var expired []string
	for key, managed := range m.connections {
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()
		if idle > m.ttl {
			expired = append(expired, key)
		}
	}

	for _, key := range expired {
		if managed := m.connections[key]; managed != nil {
			_ = managed.adapter.Close()
			delete(m.connections, key)
		}
	}

	if len(expired) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expired)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all cached adapters and stops the cleanup goroutine.
// Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for _, managed := range m.connections {
		if managed != nil && managed.adapter != nil {
			_ = managed.adapter.Close()
		}
	}
	m.connections = make(map[string]*managedAdapter)
	m.logger.Info("connection manager closed")
	return nil
}
