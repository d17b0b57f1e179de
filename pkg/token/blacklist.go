package token

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const blacklistPrefix = "blacklist:"

// Blacklist is the redis-backed revoked-token set shared with the auth
// provider. A token present in the set is rejected even if its signature
// and expiry are still valid.
type Blacklist struct {
	client *redis.Client
}

// NewBlacklist create a Blacklist on an existing redis client
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Add put token into the blacklist until its remaining TTL runs out
func (b *Blacklist) Add(ctx context.Context, tokenStr string, ttl time.Duration) error {
	return b.client.Set(ctx, blacklistPrefix+tokenStr, "1", ttl).Err()
}

// IsBlacklisted check token was revoked
func (b *Blacklist) IsBlacklisted(ctx context.Context, tokenStr string) (bool, error) {
	n, err := b.client.Exists(ctx, blacklistPrefix+tokenStr).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
