// Package pool — redis.go реализует Pool и Pairs поверх Redis.
// Очереди — отсортированные множества со временем входа в качестве веса
// (самый давний ожидающий всегда первый), занятость — множество,
// активные пары — hash. Матч выполняется Lua-скриптом: Redis исполняет
// скрипты атомарно, поэтому двойной матч невозможен без блокировок
// на стороне приложения.
package pool

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trueme.chat/telegram-bot/internal/common"
)

// Ключи в Redis.
const (
	queueKeyPrefix = "queue:"      // queue:male / queue:female — zset ожидающих
	busyKey        = "busy:users"  // set занятых (в активной сессии)
	activeChatKey  = "active_chat" // hash user_id -> partner_id
)

// joinScript добавляет пользователя в очередь, если он не занят.
// NX сохраняет исходный вес при повторном входе — позиция не теряется.
var joinScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
    return 0
end
redis.call('ZADD', KEYS[1], 'NX', ARGV[2], ARGV[1])
return 1
`)

// matchScript — атомарный матч "оба-или-никто".
// Берёт головы обеих очередей; занятый в голове очереди просто
// вычищается (он не должен был там оказаться), матч переносится
// на следующий вызов.
var matchScript = redis.NewScript(`
local male = redis.call('ZRANGE', KEYS[1], 0, 0)
if #male == 0 then
    return nil
end
local female = redis.call('ZRANGE', KEYS[2], 0, 0)
if #female == 0 then
    return nil
end

if redis.call('SISMEMBER', KEYS[3], male[1]) == 1 then
    redis.call('ZREM', KEYS[1], male[1])
    return nil
end
if redis.call('SISMEMBER', KEYS[3], female[1]) == 1 then
    redis.call('ZREM', KEYS[2], female[1])
    return nil
end

redis.call('ZREM', KEYS[1], male[1])
redis.call('ZREM', KEYS[2], female[1])
redis.call('SADD', KEYS[3], male[1], female[1])
return {male[1], female[1]}
`)

// RedisStore реализует Pool и Pairs поверх одного Redis-клиента.
type RedisStore struct {
	client *redis.Client
	roles  []string
}

// NewRedisStore создаёт хранилище матчмейкинга.
func NewRedisStore(client *redis.Client, roles []string) *RedisStore {
	return &RedisStore{client: client, roles: roles}
}

func queueKey(role string) string {
	return queueKeyPrefix + role
}

// Join добавляет пользователя в очередь роли role.
func (s *RedisStore) Join(ctx context.Context, userID int64, role string) error {
	score := float64(time.Now().UnixMilli())
	err := joinScript.Run(ctx, s.client,
		[]string{queueKey(role), busyKey},
		userID, score,
	).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("pool join: %w", err)
	}
	return nil
}

// Leave убирает пользователя из всех очередей.
func (s *RedisStore) Leave(ctx context.Context, userID int64) error {
	for _, role := range s.roles {
		if err := s.client.ZRem(ctx, queueKey(role), userID).Err(); err != nil {
			return fmt.Errorf("pool leave: %w", err)
		}
	}
	return nil
}

// MatchOne атомарно выбирает пару (male, female).
func (s *RedisStore) MatchOne(ctx context.Context) (int64, int64, error) {
	res, err := matchScript.Run(ctx, s.client,
		[]string{queueKey("male"), queueKey("female"), busyKey},
	).Result()
	if err == redis.Nil {
		return 0, 0, common.ErrNoMatch
	}
	if err != nil {
		return 0, 0, fmt.Errorf("pool match: %w", err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return 0, 0, common.ErrNoMatch
	}

	maleID, err := toInt64(pair[0])
	if err != nil {
		return 0, 0, fmt.Errorf("pool match: некорректный id male: %w", err)
	}
	femaleID, err := toInt64(pair[1])
	if err != nil {
		return 0, 0, fmt.Errorf("pool match: некорректный id female: %w", err)
	}
	return maleID, femaleID, nil
}

// Release снимает флаги занятости с обоих участников.
func (s *RedisStore) Release(ctx context.Context, a, b int64) error {
	if err := s.client.SRem(ctx, busyKey, a, b).Err(); err != nil {
		return fmt.Errorf("pool release: %w", err)
	}
	return nil
}

// EvictStale убирает из очереди всех, кто ждёт дольше deadline.
func (s *RedisStore) EvictStale(ctx context.Context, role string, deadline time.Time) ([]int64, error) {
	key := queueKey(role)
	max := strconv.FormatInt(deadline.UnixMilli(), 10)

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("pool evict: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", max).Err(); err != nil {
		return nil, fmt.Errorf("pool evict: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Set связывает пару в обе стороны одним HSET.
func (s *RedisStore) Set(ctx context.Context, a, b int64) error {
	err := s.client.HSet(ctx, activeChatKey,
		strconv.FormatInt(a, 10), strconv.FormatInt(b, 10),
		strconv.FormatInt(b, 10), strconv.FormatInt(a, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("pairs set: %w", err)
	}
	return nil
}

// Clear разрывает пару для обеих сторон одним HDEL.
func (s *RedisStore) Clear(ctx context.Context, a, b int64) error {
	err := s.client.HDel(ctx, activeChatKey,
		strconv.FormatInt(a, 10), strconv.FormatInt(b, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("pairs clear: %w", err)
	}
	return nil
}

// Partner возвращает партнёра пользователя.
func (s *RedisStore) Partner(ctx context.Context, userID int64) (int64, bool, error) {
	val, err := s.client.HGet(ctx, activeChatKey, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("pairs partner: %w", err)
	}

	partner, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("pairs partner: некорректное значение %q: %w", val, err)
	}
	return partner, true, nil
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("неожиданный тип %T", v)
	}
}
