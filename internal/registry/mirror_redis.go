package registry

import (
	"context"

	platformredis "certo/internal/platform/redis"
)

// RedisMirror copies the emergency flag into Redis so sibling processes and
// dashboards can observe the freeze without hitting the registry API.
type RedisMirror struct {
	client *platformredis.Client
}

// NewRedisMirror wraps an optional Redis client. Returns nil when the client
// is nil so callers can wire it unconditionally.
func NewRedisMirror(client *platformredis.Client) *RedisMirror {
	if client == nil {
		return nil
	}
	return &RedisMirror{client: client}
}

func (m *RedisMirror) SetEmergencyMode(ctx context.Context, active bool) error {
	return m.client.SetEmergencyFlag(ctx, active)
}
