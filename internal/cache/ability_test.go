package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-org-admin/internal/testutil"
	"github.com/tendant/simple-org-admin/pkg/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unreachableRedis fails every command quickly.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestApplicationCache_GetOrganizationAbility(t *testing.T) {
	store := testutil.NewStore()
	org := store.AddOrganization(domain.PlanTypeEnterpriseAnnual)
	org.UsePolicies = true

	tests := []struct {
		name   string
		client *redis.Client
	}{
		{"without redis", nil},
		{"redis unavailable", unreachableRedis()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewApplicationCache(tt.client, store.OrganizationRepo(), time.Minute, discardLogger())

			a, err := c.GetOrganizationAbility(context.Background(), org.ID)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, org.ID, a.ID)
			assert.True(t, a.UsePolicies)

			a, err = c.GetOrganizationAbility(context.Background(), uuid.New())
			require.NoError(t, err)
			assert.Nil(t, a)
		})
	}
}

type failingSource struct{}

func (failingSource) GetAbility(context.Context, uuid.UUID) (*domain.OrganizationAbility, error) {
	return nil, errors.New("db down")
}

func TestApplicationCache_SourceError(t *testing.T) {
	c := NewApplicationCache(nil, failingSource{}, time.Minute, discardLogger())
	_, err := c.GetOrganizationAbility(context.Background(), uuid.New())
	assert.EqualError(t, err, "db down")
}

func TestApplicationCache_DeleteWithoutRedis(t *testing.T) {
	c := NewApplicationCache(nil, failingSource{}, time.Minute, discardLogger())
	assert.NoError(t, c.DeleteOrganizationAbility(context.Background(), uuid.New()))
}

func TestApplicationCache_DeleteReportsRedisErrors(t *testing.T) {
	c := NewApplicationCache(unreachableRedis(), failingSource{}, time.Minute, discardLogger())
	assert.Error(t, c.DeleteOrganizationAbility(context.Background(), uuid.New()))
}
