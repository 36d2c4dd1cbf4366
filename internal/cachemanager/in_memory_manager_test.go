package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[int64, string]("test", NoExpiration, NoCleanup)
	})
}

type ExampleStruct struct {
	ID   int
	Name string
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, ExampleStruct]("tables", NoExpiration, NoCleanup)
	example := ExampleStruct{Name: "apple"}
	cache.Set(context.Background(), 1, example, NoExpiration)

	got, ok := cache.Get(context.Background(), 1)
	require.True(t, ok)
	require.Equal(t, example, got)
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)

	got, ok := cache.Get(context.Background(), 7)
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)

	cache.cache.Set(cache.key(1), 123, NoExpiration)

	got, ok := cache.Get(context.Background(), 1)
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_KeysArePrefixedByUseCase(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	require.Equal(t, "tables:42", cache.key(42))
}

func TestInMemoryCacheManager_Expiration(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	cache.Set(context.Background(), 1, "short", time.Millisecond)
	cache.Set(context.Background(), 2, "forever", NoExpiration)

	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(context.Background(), 1)
	require.False(t, ok)
	got, ok := cache.Get(context.Background(), 2)
	require.True(t, ok)
	require.Equal(t, "forever", got)
}

func TestInMemoryCacheManager_DeleteWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)

	err := cache.Delete(context.Background())
	require.NoError(t, err)
}

func TestInMemoryCacheManager_DeleteExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	cache.Set(context.Background(), 1, "apple", NoExpiration)

	err := cache.Delete(context.Background(), 1)
	require.NoError(t, err)

	got, ok := cache.Get(context.Background(), 1)
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestInMemoryCacheManager_FlushAndLen(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	cache.Set(context.Background(), 1, "apple", NoExpiration)
	cache.Set(context.Background(), 2, "pear", NoExpiration)
	require.Equal(t, 2, cache.Len(context.Background()))

	err := cache.Flush(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, cache.Len(context.Background()))
	_, ok := cache.Get(context.Background(), 1)
	require.False(t, ok)
}
