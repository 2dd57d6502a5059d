package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "test:tenant:", time.Second)
	ctx := context.Background()

	require.NoError(t, store.PutTenant(ctx, Info{
		ID:       "acme",
		Name:     "Acme Corp",
		Active:   true,
		Metadata: map[string]string{"plan": "enterprise"},
	}))

	info, err := store.GetTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", info.Name)
	assert.True(t, info.Active)
	assert.Equal(t, "enterprise", info.Metadata["plan"])

	_, err = store.GetTenant(ctx, "missing")
	te, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 404, te.Status)
}
