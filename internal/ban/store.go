package ban

import (
	"context"
	"log"

	"rondo/internal/utils"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// Store is the durable ban list. ListBans is the only call the refresh
// path uses; SetBan and ClearBan are the write interface consumed by the
// dashboard's persistence layer.
type Store interface {
	ListBans(ctx context.Context) ([]Record, error)
	SetBan(ctx context.Context, deviceID, reason, by string) error
	ClearBan(ctx context.Context, deviceID string) error
	Close() error
}

// NewStore picks the Redis store when REDIS_HOST is set, falling back to
// the in-memory store when Redis is unreachable or unconfigured.
func NewStore() (Store, error) {
	redisHost := utils.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(EnvRedisPort, "6379")
		redisUser := utils.GetEnv(EnvRedisUser, "")
		redisPassword := utils.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory ban store")
			return NewMemoryStore(), nil
		}
		log.Printf("💾 Using Redis ban store: %s:%s", redisHost, redisPort)
		return store, nil
	}

	log.Println("💾 Using in-memory ban store")
	return NewMemoryStore(), nil
}
