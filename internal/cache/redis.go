// Package cache реализует кэширование телеметрии кольца в Redis
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"ring-haptics-service/internal/wellness"
)

const (
	// CoherenceListKey последние пакеты когерентности, новые в начале
	CoherenceListKey = "coherence:recent"
	// CueListKey последние сработавшие подсказки
	CueListKey = "cues:recent"
	// RRKeyPrefix префикс списка RR сессии
	RRKeyPrefix = "rr:"
	// DeviceStateKey последнее состояние устройства
	DeviceStateKey = "device:state"

	// CuesCounterKey счетчик сохраненных подсказок
	CuesCounterKey = "stats:cues"
	// CommandsCounterKey счетчик внешних команд
	CommandsCounterKey = "stats:commands"
	// SamplesCounterKey счетчик принятых сэмплов
	SamplesCounterKey = "stats:samples"

	// MaxRecent длина списков последних событий
	MaxRecent = 1000
	// MaxRRPerSession столько RR хранится на сессию
	MaxRRPerSession = 10000
	// DefaultTTL время жизни записи по умолчанию
	DefaultTTL = 5 * time.Minute
	// SessionTTL время жизни RR сессии
	SessionTTL = 24 * time.Hour
)

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	log    *zap.Logger
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(addr, password string, db int, log *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := NewFromClient(client, log)

	// Проверяем подключение
	if err := c.Ping(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return c, nil
}

// NewFromClient оборачивает готовый клиент
func NewFromClient(client *redis.Client, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
		log:    log.Named("cache"),
	}
}

// CacheEvent сохраняет событие runner по его типу
func (r *RedisCache) CacheEvent(e wellness.Event) error {
	switch e.Type {
	case wellness.EventCoherence:
		return r.pushRecent(CoherenceListKey, e, "")
	case wellness.EventCue:
		return r.pushRecent(CueListKey, e, CuesCounterKey)
	case wellness.EventRR:
		if e.RR == nil {
			return nil
		}
		return r.CacheRR(e.SessionID, e.RR.RRMs)
	case wellness.EventDeviceState:
		return r.SetWithTTL(DeviceStateKey, e, DefaultTTL)
	case wellness.EventCommand:
		_, err := r.IncrementCounter(CommandsCounterKey)
		return err
	default:
		return nil
	}
}

func (r *RedisCache) pushRecent(key string, e wellness.Event, counter string) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(r.ctx, key, data)
	pipe.LTrim(r.ctx, key, 0, MaxRecent-1)
	if counter != "" {
		pipe.Incr(r.ctx, counter)
	}

	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to cache %s event: %w", e.Type, err)
	}
	return nil
}

// CacheRR дописывает RR сессии в конец списка
func (r *RedisCache) CacheRR(sessionID string, rr []float64) error {
	if len(rr) == 0 {
		return nil
	}
	key := RRKeyPrefix + sessionID

	values := make([]interface{}, len(rr))
	for i, v := range rr {
		values[i] = v
	}

	pipe := r.client.Pipeline()
	pipe.RPush(r.ctx, key, values...)
	pipe.LTrim(r.ctx, key, -MaxRRPerSession, -1)
	pipe.Expire(r.ctx, key, SessionTTL)

	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to cache rr: %w", err)
	}
	return nil
}

// SessionRR возвращает RR сессии в порядке поступления
func (r *RedisCache) SessionRR(sessionID string) ([]float64, error) {
	data, err := r.client.LRange(r.ctx, RRKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session rr: %w", err)
	}

	rr := make([]float64, 0, len(data))
	for _, d := range data {
		v, err := strconv.ParseFloat(d, 64)
		if err != nil {
			continue
		}
		rr = append(rr, v)
	}
	return rr, nil
}

// RecentCoherence возвращает последние count пакетов когерентности, новые первыми
func (r *RedisCache) RecentCoherence(count int64) ([]wellness.Event, error) {
	return r.recent(CoherenceListKey, count)
}

// RecentCues возвращает последние count подсказок, новые первыми
func (r *RedisCache) RecentCues(count int64) ([]wellness.Event, error) {
	return r.recent(CueListKey, count)
}

func (r *RedisCache) recent(key string, count int64) ([]wellness.Event, error) {
	if count <= 0 {
		return []wellness.Event{}, nil
	}
	data, err := r.client.LRange(r.ctx, key, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	events := make([]wellness.Event, 0, len(data))
	for _, d := range data {
		var e wellness.Event
		if err := json.Unmarshal([]byte(d), &e); err != nil {
			r.log.Warn("Skipping malformed cached event", zap.String("key", key), zap.Error(err))
			continue
		}
		events = append(events, e)
	}

	return events, nil
}

// LatestDeviceState последнее сохраненное состояние устройства
func (r *RedisCache) LatestDeviceState() (wellness.Event, bool, error) {
	var e wellness.Event
	err := r.Get(DeviceStateKey, &e)
	if err == redis.Nil {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("failed to get device state: %w", err)
	}
	return e, true, nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(key string) (int64, error) {
	return r.client.Incr(r.ctx, key).Result()
}

// IncrementCounterBy увеличивает счетчик на n
func (r *RedisCache) IncrementCounterBy(key string, n int64) (int64, error) {
	return r.client.IncrBy(r.ctx, key, n).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(key string) (int64, error) {
	val, err := r.client.Get(r.ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// SetWithTTL устанавливает значение с TTL
func (r *RedisCache) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, ttl).Err()
}

// Get получает значение по ключу
func (r *RedisCache) Get(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (r *RedisCache) FlushDB() error {
	return r.client.FlushDB(r.ctx).Err()
}
