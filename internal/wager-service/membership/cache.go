package membership

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
)

// Cached encapsula um Verifier com cache Redis de leitura
// Só memberships aprovadas são guardadas; falhas do Redis caem para o Verifier original
type Cached struct {
	Next Verifier
	R    *redis.Client
	TTL  time.Duration
	Log  *zap.Logger
}

func NewCached(next Verifier, r *redis.Client, ttl time.Duration, log *zap.Logger) *Cached {
	return &Cached{Next: next, R: r, TTL: ttl, Log: log}
}

// cacheKey gera a chave Redis da membership de um usuário num grupo
func cacheKey(groupID, userID string) string { return "membership:" + groupID + ":" + userID }

func (c *Cached) Verify(ctx context.Context, userID, groupID string) (domain.Membership, error) {
	k := cacheKey(groupID, userID)

	b, err := c.R.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var ms domain.Membership
		if jerr := json.Unmarshal(b, &ms); jerr == nil && ms.Approved() {
			return ms, nil
		}
		// entrada ilegível ou não aprovada: descarta e consulta o Store
		if derr := c.invalidate(ctx, userID, groupID); derr != nil {
			c.Log.Warn("membership cache del failed", zap.String("key", k), zap.Error(derr))
		}
	case err != redis.Nil:
		c.Log.Warn("membership cache get failed", zap.String("key", k), zap.Error(err))
	}

	ms, err := c.Next.Verify(ctx, userID, groupID)
	if err != nil {
		return ms, err
	}

	payload, _ := json.Marshal(ms)
	if err := c.R.Set(ctx, k, payload, c.TTL).Err(); err != nil {
		c.Log.Warn("membership cache set failed", zap.String("key", k), zap.Error(err))
	}
	return ms, nil
}

// invalidate remove a membership do cache
func (c *Cached) invalidate(ctx context.Context, userID, groupID string) error {
	return c.R.Del(ctx, cacheKey(groupID, userID)).Err()
}
