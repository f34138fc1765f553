package device

import (
	"log"

	"rondo/internal/utils"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
)

type Store interface {
	Save(device *Device)
	Get(id string) (*Device, bool)
	Delete(id string)
	Close() error
}

// NewStore picks the Redis store when REDIS_HOST is set so device
// registrations survive a server restart, falling back to memory.
func NewStore() (Store, error) {
	redisHost := utils.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := utils.GetEnv(EnvRedisPort, "6379")
		redisUser := utils.GetEnv(EnvRedisUser, "")
		redisPassword := utils.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("⚠️  Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory device store")
			return NewMemoryStore(), nil
		}
		log.Printf("💾 Using Redis device store: %s:%s", redisHost, redisPort)
		return store, nil
	}

	log.Println("💾 Using in-memory device store")
	return NewMemoryStore(), nil
}
