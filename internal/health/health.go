// Package health runs dependency checks at startup and on demand.
package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Checker is a single dependency check.
type Checker interface {
	HealthCheck(ctx context.Context) error
	IsCritical() bool // Critical dependencies block startup if unhealthy
	Name() string
}

// Manager holds the registered checkers.
type Manager struct {
	checkers []Checker
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates a new health manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers: make([]Checker, 0),
		logger:   logger,
	}
}

// AddChecker adds a health checker to the manager
func (m *Manager) AddChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// StartupHealthCheck fails when a critical checker fails. Non-critical
// failures are logged.
func (m *Manager) StartupHealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var criticalFailures []error
	for _, checker := range m.checkers {
		err := checker.HealthCheck(ctx)
		switch {
		case err == nil:
			m.logger.Info("Health check passed",
				zap.String("service", checker.Name()),
				zap.Bool("critical", checker.IsCritical()))
		case checker.IsCritical():
			criticalFailures = append(criticalFailures, fmt.Errorf("%s: %w", checker.Name(), err))
			m.logger.Error("Critical health check failed",
				zap.String("service", checker.Name()),
				zap.Error(err))
		default:
			m.logger.Warn("Non-critical service degraded",
				zap.String("service", checker.Name()),
				zap.Error(err))
		}
	}

	if len(criticalFailures) > 0 {
		return fmt.Errorf("critical services failed health check: %v", criticalFailures)
	}
	return nil
}

// RuntimeHealthCheck runs every checker and reports the result by name.
func (m *Manager) RuntimeHealthCheck(ctx context.Context) map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]error, len(m.checkers))
	for _, checker := range m.checkers {
		results[checker.Name()] = checker.HealthCheck(ctx)
	}
	return results
}

// Func adapts a function to Checker.
type Func struct {
	CheckName string
	Critical  bool
	Check     func(ctx context.Context) error
}

func (f Func) HealthCheck(ctx context.Context) error { return f.Check(ctx) }
func (f Func) IsCritical() bool                      { return f.Critical }
func (f Func) Name() string                          { return f.CheckName }

// DatabaseChecker checks database connectivity
type DatabaseChecker struct {
	db *bun.DB
}

// NewDatabaseChecker creates a database health checker
func NewDatabaseChecker(db *bun.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

func (d *DatabaseChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseChecker) IsCritical() bool {
	return true
}

func (d *DatabaseChecker) Name() string {
	return "database"
}

// RedisChecker checks the cache mirror. The mirror is optional.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a redis health checker
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisChecker) IsCritical() bool {
	return false
}

func (r *RedisChecker) Name() string {
	return "redis"
}
