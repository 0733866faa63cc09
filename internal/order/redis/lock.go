package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds a short-lived lock per gateway order reference so that
// duplicate payment confirmations (double webhook delivery, user retry) are
// serialized instead of racing each other through the settle path.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl}
}

const lockPrefix = "payment_confirm:"

func (r *Redis) LockConfirmation(gatewayOrderRef string) (bool, error) {
	key := lockPrefix + gatewayOrderRef
	return r.Client.SetNX(context.Background(), key, "confirming", r.TTL).Result()
}

func (r *Redis) UnlockConfirmation(gatewayOrderRef string) error {
	key := lockPrefix + gatewayOrderRef
	_, err := r.Client.Del(context.Background(), key).Result()
	if err == redis.Nil {
		return nil
	}
	return err
}
