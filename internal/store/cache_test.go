package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/biomap-cli/internal/resolve"
)

func TestCachedResolver_CachesHits(t *testing.T) {
	ctx := context.Background()
	inner := new(mockResolver)
	inner.On("Resolve", mock.Anything, "P12345").Return(&resolve.Resolution{CanonicalID: "Q99999", Score: 1}, nil)
	c := NewCachedResolver(inner, newTestSQLiteStore(t), "uniprot", time.Hour)

	for range 3 {
		res, err := c.Resolve(ctx, "P12345")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "Q99999", res.CanonicalID)
	}
	inner.AssertNumberOfCalls(t, "Resolve", 1)

	// Keys are case-insensitive.
	res, err := c.Resolve(ctx, " p12345 ")
	require.NoError(t, err)
	require.NotNil(t, res)
	inner.AssertNumberOfCalls(t, "Resolve", 1)
	inner.AssertExpectations(t)
}

func TestCachedResolver_CachesUnknown(t *testing.T) {
	ctx := context.Background()
	inner := new(mockResolver)
	inner.On("Resolve", mock.Anything, "NOPE1").Return(nil, nil)
	c := NewCachedResolver(inner, newTestSQLiteStore(t), "uniprot", time.Hour)

	for range 2 {
		res, err := c.Resolve(ctx, "NOPE1")
		require.NoError(t, err)
		assert.Nil(t, res)
	}
	inner.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestCachedResolver_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := new(mockResolver)
	inner.On("Resolve", mock.Anything, "P12345").Return(nil, errors.New("service unavailable"))
	c := NewCachedResolver(inner, newTestSQLiteStore(t), "uniprot", time.Hour)

	_, err := c.Resolve(ctx, "P12345")
	require.Error(t, err)
	_, err = c.Resolve(ctx, "P12345")
	require.Error(t, err)
	inner.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestCachedResolver_EmptyID(t *testing.T) {
	inner := new(mockResolver)
	c := NewCachedResolver(inner, newTestSQLiteStore(t), "uniprot", 0)

	res, err := c.Resolve(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, res)
	inner.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	assert.Equal(t, DefaultResolverTTL, c.ttl)
}

func TestCachedResolver_StoreFailureFallsThrough(t *testing.T) {
	s := newTestSQLiteStore(t)
	require.NoError(t, s.Close())

	inner := new(mockResolver)
	inner.On("Resolve", mock.Anything, "P1").Return(&resolve.Resolution{CanonicalID: "Q1", Score: 1}, nil)
	c := NewCachedResolver(inner, s, "uniprot", time.Hour)

	res, err := c.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Q1", res.CanonicalID)
	inner.AssertExpectations(t)
}
