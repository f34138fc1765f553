package device

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"rondo/internal/constants"
)

type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	cancel func()
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{client: client, ctx: ctx, cancel: cancel}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := store.client.Ping(pingCtx).Err(); err != nil {
		cancel()
		client.Close()
		return nil, err
	}

	return store, nil
}

func (st *RedisStore) Save(device *Device) {
	data, err := json.Marshal(device)
	if err != nil {
		log.Printf("Failed to marshal device: %v", err)
		return
	}

	ttl := time.Until(device.ExpiresAt)
	if ttl <= 0 {
		return
	}

	key := constants.RedisDevicePrefix + device.ID
	if err := st.client.Set(st.ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Failed to save device to Redis: %v", err)
	}
}

func (st *RedisStore) Get(id string) (*Device, bool) {
	key := constants.RedisDevicePrefix + id

	data, err := st.client.Get(st.ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to get device from Redis: %v", err)
		return nil, false
	}

	var dev Device
	if err := json.Unmarshal([]byte(data), &dev); err != nil {
		log.Printf("Failed to unmarshal device: %v", err)
		return nil, false
	}

	if dev.IsExpired() {
		st.Delete(id)
		return nil, false
	}

	return &dev, true
}

func (st *RedisStore) Delete(id string) {
	key := constants.RedisDevicePrefix + id
	if err := st.client.Del(st.ctx, key).Err(); err != nil {
		log.Printf("Failed to delete device from Redis: %v", err)
	}
}

func (st *RedisStore) Close() error {
	st.cancel()
	return st.client.Close()
}
