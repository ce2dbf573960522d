package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/users"
)

// DefaultMirrorKey is the redis key the snapshot is stored under.
const DefaultMirrorKey = "userdesk:users:snapshot"

// RedisMirror persists UserList snapshots to redis so a restarted shell can
// show the last known list before its first load completes. Redis failures
// behave like a cache miss.
type RedisMirror struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisMirror creates a mirror for the given redis address.
func NewRedisMirror(addr, password string, db int, ttl time.Duration, logger *zap.Logger) *RedisMirror {
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		key:    DefaultMirrorKey,
		ttl:    ttl,
		logger: logger,
	}
}

// Save stores the list, ignoring redis errors.
func (m *RedisMirror) Save(ctx context.Context, list []users.User) {
	if m == nil || m.client == nil {
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		m.logger.Warn("Failed to encode user snapshot", zap.Error(err))
		return
	}
	if err := m.client.Set(ctx, m.key, data, m.ttl).Err(); err != nil {
		m.logger.Warn("Failed to mirror user snapshot", zap.Error(err))
	}
}

// Load returns the stored list, or nil when missing or redis is unavailable.
func (m *RedisMirror) Load(ctx context.Context) []users.User {
	if m == nil || m.client == nil {
		return nil
	}
	data, err := m.client.Get(ctx, m.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		m.logger.Warn("Failed to read user snapshot", zap.Error(err))
		return nil
	}

	var list []users.User
	if err := json.Unmarshal(data, &list); err != nil {
		m.logger.Warn("Discarding corrupt user snapshot", zap.Error(err))
		return nil
	}
	return list
}

// Attach warms list from redis and mirrors every later replacement. The
// returned function detaches the mirror.
func (m *RedisMirror) Attach(ctx context.Context, list *UserList) func() {
	if m == nil || m.client == nil {
		return func() {}
	}
	if warm := m.Load(ctx); len(warm) > 0 {
		list.Replace(warm)
		m.logger.Info("Warmed user cache from redis", zap.Int("count", len(warm)))
	}

	// Subscribe replays the current list before any replacement is
	// delivered; the replay is already stored.
	first := true
	return list.Subscribe(func(snapshot []users.User) {
		if first {
			first = false
			return
		}
		m.Save(context.Background(), snapshot)
	})
}

// Close releases the redis connection.
func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// Client returns the underlying redis client, nil for a nil mirror.
func (m *RedisMirror) Client() *redis.Client {
	if m == nil {
		return nil
	}
	return m.client
}
