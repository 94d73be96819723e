// Package cache — кеш рейтинга в Redis.
//
// Топ периода считается в PostgreSQL и кладётся сюда как JSON с коротким TTL.
// Ключ включает период, поэтому после переката старый топ просто истекает.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// RankingCache хранит топ по периодам.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRankingCache подключается к Redis и проверяет соединение.
func NewRankingCache(ctx context.Context, cfg *config.Config) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis недоступен: %w", err)
	}
	return &RankingCache{client: client, ttl: cfg.RankingCacheTTL}, nil
}

// Close закрывает соединение.
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// Ping проверяет соединение (для /healthz).
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// TopKey — ключ топа периода.
func TopKey(periodKey string) string {
	return fmt.Sprintf("ascenso:ranking:%s:top", periodKey)
}

// GetTop возвращает топ периода. ok=false — в кеше нет.
func (c *RankingCache) GetTop(ctx context.Context, periodKey string) ([]domain.RankingRow, bool, error) {
	raw, err := c.client.Get(ctx, TopKey(periodKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения кеша рейтинга: %w", err)
	}
	var rows []domain.RankingRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("повреждённый кеш рейтинга: %w", err)
	}
	return rows, true, nil
}

// SetTop кладёт топ периода с TTL.
func (c *RankingCache) SetTop(ctx context.Context, periodKey string, rows []domain.RankingRow) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("ошибка сериализации рейтинга: %w", err)
	}
	if err := c.client.Set(ctx, TopKey(periodKey), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи кеша рейтинга: %w", err)
	}
	return nil
}

// Invalidate удаляет топ периода.
func (c *RankingCache) Invalidate(ctx context.Context, periodKey string) error {
	return c.client.Del(ctx, TopKey(periodKey)).Err()
}
