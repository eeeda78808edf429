package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/model"
	"github.com/target/eligibility-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestCachedLookups_LookupExclusions(t *testing.T) {
	t.Parallel()

	id := model.Identifier{UEI: "abc123"}
	normalized := model.Identifier{UEI: "ABC123"}
	upstream := &model.ExclusionsResult{Count: 1, Hits: []model.ExclusionHit{{Name: "ACME"}}}
	cachedRaw, err := json.Marshal(upstream)
	require.NoError(t, err)

	tests := []struct {
		name      string
		setup     func(*mocks.MockCacheRepository, *mocks.MockExclusionsLookup)
		wantCount int
		wantErr   bool
	}{
		{
			name: "cache hit skips upstream",
			setup: func(cache *mocks.MockCacheRepository, _ *mocks.MockExclusionsLookup) {
				cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(cachedRaw, nil)
			},
			wantCount: 1,
		},
		{
			name: "cache miss queries upstream and stores",
			setup: func(cache *mocks.MockCacheRepository, ex *mocks.MockExclusionsLookup) {
				cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
				ex.EXPECT().LookupExclusions(gomock.Any(), normalized).Return(upstream, nil)
				cache.EXPECT().Set(gomock.Any(), gomock.Any(), cachedRaw, 5*time.Minute).Return(nil)
			},
			wantCount: 1,
		},
		{
			name: "cache read failure falls through",
			setup: func(cache *mocks.MockCacheRepository, ex *mocks.MockExclusionsLookup) {
				cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis down"))
				ex.EXPECT().LookupExclusions(gomock.Any(), normalized).Return(upstream, nil)
				cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
			},
			wantCount: 1,
		},
		{
			name: "upstream failure is not cached",
			setup: func(cache *mocks.MockCacheRepository, ex *mocks.MockExclusionsLookup) {
				cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
				ex.EXPECT().LookupExclusions(gomock.Any(), normalized).Return(nil, errors.New("503"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			cache := mocks.NewMockCacheRepository(ctrl)
			ex := mocks.NewMockExclusionsLookup(ctrl)
			tt.setup(cache, ex)

			c := core.NewCachedLookups(core.CachedLookupsOptions{
				Cache:      cache,
				Exclusions: ex,
				TTL:        5 * time.Minute,
			})
			got, err := c.LookupExclusions(context.Background(), id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, got.Count)
		})
	}
}

func TestCachedLookups_KeyIsNormalised(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	reg := mocks.NewMockRegistrationLookup(ctrl)

	var keys []string
	cache.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, key string) ([]byte, error) {
		keys = append(keys, key)
		return nil, nil
	}).Times(2)
	active := true
	// Both callers reach the upstream with the identifier the key was built from.
	reg.EXPECT().LookupRegistration(gomock.Any(), model.Identifier{UEI: "ABC123", LegalName: "Acme Corp"}).
		Return(&model.RegistrationResult{Active: &active}, nil).Times(2)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), core.DefaultLookupCacheTTL).Return(nil).Times(2)

	c := core.NewCachedLookups(core.CachedLookupsOptions{Cache: cache, Registration: reg})
	_, err := c.LookupRegistration(context.Background(), model.Identifier{UEI: " abc123 ", LegalName: " Acme Corp"})
	require.NoError(t, err)
	_, err = c.LookupRegistration(context.Background(), model.Identifier{UEI: "ABC123", LegalName: "Acme Corp"})
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Contains(t, keys[0], "sam:registration:")
}
