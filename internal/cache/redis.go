// Package cache управляет подключением к Redis.
// Redis хранит только переходное состояние: очередь поиска,
// активные пары и флаги занятости. Всё долговременное лежит в PostgreSQL.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"trueme.chat/telegram-bot/internal/config"
)

// Redis оборачивает клиент go-redis.
type Redis struct {
	client *redis.Client
}

// New создаёт подключение к Redis по конфигурации.
func New(cfg *config.Config) *Redis {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisUseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Redis{client: redis.NewClient(opts)}
}

// Client возвращает низкоуровневый клиент go-redis.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Ping проверяет доступность Redis.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Подключение к Redis установлено")
	return nil
}

// Close освобождает ресурсы клиента.
func (r *Redis) Close() error {
	return r.client.Close()
}
