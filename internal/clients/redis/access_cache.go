package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/services"
)

// unrestrictedSentinel marks a cached "no restriction" answer, which is
// distinct from an empty allow-list.
const unrestrictedSentinel = "*"

// AccessCache decorates an AccessProvider with a short-lived Redis
// cache so the allow-list is not recomputed on every request.
type AccessCache struct {
	log      *logger.Logger
	rdb      *goredis.Client
	delegate services.AccessProvider
	ttl      time.Duration
}

func NewAccessCache(log *logger.Logger, delegate services.AccessProvider) (*AccessCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &AccessCache{
		log:      log.With("service", "RedisAccessCache"),
		rdb:      rdb,
		delegate: delegate,
		ttl:      60 * time.Second,
	}, nil
}

func (ac *AccessCache) AccessibleModuleIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	key := "access:modules:" + userID.String()

	raw, err := ac.rdb.Get(ctx, key).Result()
	if err == nil {
		return decodeAccessSet(raw)
	}
	if err != goredis.Nil {
		// Cache trouble degrades to the delegate, never to a denial.
		ac.log.Warn("Access cache read failed", "error", err, "user_id", userID)
	}

	set, err := ac.delegate.AccessibleModuleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if encErr := ac.store(ctx, key, set); encErr != nil {
		ac.log.Warn("Access cache write failed", "error", encErr, "user_id", userID)
	}
	return set, nil
}

func (ac *AccessCache) store(ctx context.Context, key string, set map[uuid.UUID]struct{}) error {
	payload := unrestrictedSentinel
	if set != nil {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id.String())
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		payload = string(raw)
	}
	return ac.rdb.Set(ctx, key, payload, ac.ttl).Err()
}

func decodeAccessSet(raw string) (map[uuid.UUID]struct{}, error) {
	if raw == unrestrictedSentinel {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode cached access set: %w", err)
	}
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("decode cached module id: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, nil
}

func (ac *AccessCache) Close() error {
	if ac == nil || ac.rdb == nil {
		return nil
	}
	return ac.rdb.Close()
}
