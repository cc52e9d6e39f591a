package ecommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	shopee, err := NewShopeeAdapter(NewShopeeConfig(1, "k"), zap.NewNop())
	require.NoError(t, err)
	tiktok, err := NewTikTokShopAdapter(NewTikTokShopConfig("k", "s"), zap.NewNop())
	require.NoError(t, err)
	return NewRegistry(tiktok, shopee)
}

func TestRegistry_GetPlatform(t *testing.T) {
	r := newTestRegistry(t)

	p, err := r.GetPlatform(integration.PlatformCodeShopee)
	require.NoError(t, err)
	assert.Equal(t, integration.PlatformCodeShopee, p.PlatformCode())

	_, err = r.GetPlatform(integration.PlatformCode("lazada"))
	assert.ErrorIs(t, err, integration.ErrPlatformNotRegistered)
}

func TestRegistry_ListPlatformsIsOrdered(t *testing.T) {
	list := newTestRegistry(t).ListPlatforms()
	require.Len(t, list, 2)
	assert.Equal(t, integration.PlatformCodeShopee, list[0].PlatformCode())
	assert.Equal(t, integration.PlatformCodeTikTokShop, list[1].PlatformCode())
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name    string
		target  integration.PlatformCode
		want    int
		wantErr error
	}{
		{"all", integration.PlatformCodeAll, 2, nil},
		{"single", integration.PlatformCodeTikTokShop, 1, nil},
		{"invalid", integration.PlatformCode("ebay"), 0, integration.ErrInvalidPlatformCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := NewRegistry().Resolve(integration.PlatformCodeAll)
	assert.ErrorIs(t, err, integration.ErrPlatformNotRegistered)

	_, err = NewRegistry().Resolve(integration.PlatformCodeShopee)
	assert.ErrorIs(t, err, integration.ErrPlatformNotRegistered)
}
