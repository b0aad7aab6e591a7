package usagecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttervault/internal/domain"
)

const defaultTTL = 30 * time.Second

// Cache хранит совещательные сводки использования с коротким TTL.
// Источником истины он не является: при любом промахе или ошибке
// вызывающий обязан пересчитать сумму по реестру. Nil-кэш валиден и
// означает "кэширование выключено".
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New создает кэш поверх redis. Пустой адрес выключает кэширование.
func New(addr, password string, db int, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) key(accountID string) string {
	return fmt.Sprintf("usage:%s", accountID)
}

// Get возвращает закэшированную сводку. Любая ошибка redis трактуется
// как промах: фолбэк на реестр всегда корректен.
func (c *Cache) Get(ctx context.Context, accountID string) (*domain.UsageSnapshot, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[UsageCache] Ошибка чтения кэша для %s: %v", accountID, err)
		}
		return nil, false
	}

	var snap domain.UsageSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("[UsageCache] Поврежденная запись кэша для %s: %v", accountID, err)
		return nil, false
	}

	return &snap, true
}

// Set сохраняет сводку на время TTL. Ошибки только логируются.
func (c *Cache) Set(ctx context.Context, snap *domain.UsageSnapshot) {
	if c == nil || snap == nil {
		return
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[UsageCache] Ошибка сериализации сводки для %s: %v", snap.AccountID, err)
		return
	}

	if err := c.rdb.Set(ctx, c.key(snap.AccountID), raw, c.ttl).Err(); err != nil {
		log.Printf("[UsageCache] Ошибка записи кэша для %s: %v", snap.AccountID, err)
	}
}

// Invalidate сбрасывает сводку аккаунта после любой мутации реестра
func (c *Cache) Invalidate(ctx context.Context, accountID string) {
	if c == nil {
		return
	}

	if err := c.rdb.Del(ctx, c.key(accountID)).Err(); err != nil {
		log.Printf("[UsageCache] Ошибка инвалидации кэша для %s: %v", accountID, err)
	}
}

// Close закрывает соединение с redis
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
