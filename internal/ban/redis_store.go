package ban

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"rondo/internal/constants"
)

// RedisStore persists ban records as one JSON value per device under
// constants.RedisBanPrefix.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// ListBans scans the ban keyspace. A record that fails to decode is
// logged and skipped rather than failing the whole listing.
func (st *RedisStore) ListBans(ctx context.Context) ([]Record, error) {
	var out []Record

	iter := st.client.Scan(ctx, 0, constants.RedisBanPrefix+"*", constants.RedisScanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := st.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, err
		}

		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			log.Printf("⚠️  Skipping malformed ban record %s: %v", key, err)
			continue
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (st *RedisStore) SetBan(ctx context.Context, deviceID, reason, by string) error {
	rec := Record{
		DeviceID: deviceID,
		Banned:   true,
		Reason:   reason,
		BannedAt: time.Now(),
		BannedBy: by,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return st.client.Set(ctx, constants.RedisBanPrefix+deviceID, data, 0).Err()
}

func (st *RedisStore) ClearBan(ctx context.Context, deviceID string) error {
	return st.client.Del(ctx, constants.RedisBanPrefix+deviceID).Err()
}

func (st *RedisStore) Close() error {
	return st.client.Close()
}
