package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"glimmer/internal/pkg/redis"
	"glimmer/internal/service/checkout/domain"
)

// RedisSessionStore 把一个会话的两条记录存为两个 key，
// 使用 {sid} hash tag 保证集群模式下落在同一个 slot。
type RedisSessionStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redisClient: redisClient, ttl: ttl}
}

func cartKey(sid string) string     { return fmt.Sprintf("checkout:{%s}:cart", sid) }
func progressKey(sid string) string { return fmt.Sprintf("checkout:{%s}:progress", sid) }

// Load 任一 key 不存在时对应记录为零值
func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (domain.SessionRecords, error) {
	var rec domain.SessionRecords
	vals, err := s.redisClient.GetClient().MGet(ctx, cartKey(sessionID), progressKey(sessionID)).Result()
	if err != nil {
		return rec, errors.Wrapf(err, "load session %s", sessionID)
	}
	if err := decodeRecord(vals[0], &rec.Cart); err != nil {
		return domain.SessionRecords{}, errors.Wrapf(err, "decode cart of session %s", sessionID)
	}
	if err := decodeRecord(vals[1], &rec.Checkout); err != nil {
		return domain.SessionRecords{}, errors.Wrapf(err, "decode checkout of session %s", sessionID)
	}
	return rec, nil
}

func decodeRecord(v any, out any) error {
	switch raw := v.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(raw), out)
	default:
		return fmt.Errorf("unexpected value type %T", v)
	}
}

// Save 在一个 MULTI 中覆盖两条记录并刷新过期时间
func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, rec domain.SessionRecords) error {
	cart, err := json.Marshal(rec.Cart)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	progress, err := json.Marshal(rec.Checkout)
	if err != nil {
		return errors.Wrap(err, "encode checkout")
	}
	_, err = s.redisClient.GetClient().TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, cartKey(sessionID), cart, s.ttl)
		p.Set(ctx, progressKey(sessionID), progress, s.ttl)
		return nil
	})
	return errors.Wrapf(err, "save session %s", sessionID)
}

// Delete 两条记录一起删除
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	err := s.redisClient.GetClient().Del(ctx, cartKey(sessionID), progressKey(sessionID)).Err()
	return errors.Wrapf(err, "delete session %s", sessionID)
}
