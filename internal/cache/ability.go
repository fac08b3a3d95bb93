// Package cache serves organization abilities from Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-org-admin/pkg/domain"
)

const keyPrefix = "cache:org_ability:"

// AbilitySource loads abilities from the system of record.
type AbilitySource interface {
	GetAbility(ctx context.Context, id uuid.UUID) (*domain.OrganizationAbility, error)
}

// ApplicationCache implements domain.ApplicationCache. With a nil client
// every lookup goes to the source. Redis errors are logged and the source
// is used instead.
type ApplicationCache struct {
	client *redis.Client
	source AbilitySource
	ttl    time.Duration
	logger *slog.Logger
}

// NewApplicationCache creates the ability cache.
func NewApplicationCache(client *redis.Client, source AbilitySource, ttl time.Duration, logger *slog.Logger) *ApplicationCache {
	return &ApplicationCache{client: client, source: source, ttl: ttl, logger: logger}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (c *ApplicationCache) GetOrganizationAbility(ctx context.Context, organizationID uuid.UUID) (*domain.OrganizationAbility, error) {
	key := keyPrefix + organizationID.String()

	if c.client != nil {
		data, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var a domain.OrganizationAbility
			if err := json.Unmarshal(data, &a); err == nil {
				return &a, nil
			}
			c.logger.Warn("discarding malformed cached ability", "organization_id", organizationID)
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("ability cache read failed", "organization_id", organizationID, "error", err)
		}
	}

	a, err := c.source.GetAbility(ctx, organizationID)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if c.client != nil {
		data, err := json.Marshal(a)
		if err == nil {
			err = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		if err != nil {
			c.logger.Warn("ability cache write failed", "organization_id", organizationID, "error", err)
		}
	}
	return a, nil
}

// DeleteOrganizationAbility evicts an organization after it changes.
func (c *ApplicationCache) DeleteOrganizationAbility(ctx context.Context, organizationID uuid.UUID) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+organizationID.String()).Err()
}

var _ domain.ApplicationCache = (*ApplicationCache)(nil)
