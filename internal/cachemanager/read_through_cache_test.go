package cachemanager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/csvsource/internal/mocks"
)

type wrappedInput struct {
	Id int
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[int64, []*ExampleStruct](t)

	readThroughCache := NewReadThroughCache[int64, []*ExampleStruct, wrappedInput](
		managerMock,
		func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
			return []*ExampleStruct{{ID: input.Id}}, nil
		},
		true,
	)

	examples, err := readThroughCache.Get(context.Background(), 1, wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, examples)
	managerMock.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestReadThroughCache_Get_CacheHit(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[int64, []*ExampleStruct](t)
	cached := []*ExampleStruct{{ID: 9}}
	managerMock.On("Get", mock.Anything, int64(1)).Return(cached, true).Once()

	readThroughCache := NewReadThroughCache[int64, []*ExampleStruct, wrappedInput](
		managerMock,
		func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
			t.Fatal("loader must not run on a cache hit")
			return nil, nil
		},
		false,
	)

	got, err := readThroughCache.Get(context.Background(), 1, wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, cached, got)
}

func TestReadThroughCache_Get_CacheMissStoresValue(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[int64, []*ExampleStruct](t)
	managerMock.On("Get", mock.Anything, int64(1)).Return(nil, false).Twice()
	managerMock.On("Set", mock.Anything, int64(1), []*ExampleStruct{{ID: 1}}, time.Minute).Return().Once()

	readThroughCache := NewReadThroughCache[int64, []*ExampleStruct, wrappedInput](
		managerMock,
		func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
			return []*ExampleStruct{{ID: input.Id}}, nil
		},
		false,
	)

	got, err := readThroughCache.Get(context.Background(), 1, wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, got)
}

func TestReadThroughCache_Get_ErrorIsNotStored(t *testing.T) {
	managerMock := mocks.NewMockCacheManager[int64, []*ExampleStruct](t)
	managerMock.On("Get", mock.Anything, int64(1)).Return(nil, false)

	loadErr := errors.New("boom")
	readThroughCache := NewReadThroughCache[int64, []*ExampleStruct, wrappedInput](
		managerMock,
		func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
			return nil, loadErr
		},
		false,
	)

	got, err := readThroughCache.Get(context.Background(), 1, wrappedInput{Id: 1}, time.Minute)
	require.ErrorIs(t, err, loadErr)
	require.Nil(t, got)
	managerMock.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_Get_ConcurrentMissesLoadOnce(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)

	var loads atomic.Int32
	release := make(chan struct{})
	readThroughCache := NewReadThroughCache[int64, string, string](
		cache,
		func(ctx context.Context, input string) (string, error) {
			loads.Add(1)
			<-release
			return input, nil
		},
		false,
	)

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := readThroughCache.Get(context.Background(), 1, "payload", NoExpiration)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		require.Equal(t, "payload", v)
	}

	// Later calls hit the cache.
	_, err := readThroughCache.Get(context.Background(), 1, "other", NoExpiration)
	require.NoError(t, err)
	require.Equal(t, int32(1), loads.Load())
}

func TestReadThroughCache_Get_WaiterContextCancelled(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)

	release := make(chan struct{})
	readThroughCache := NewReadThroughCache[int64, string, string](
		cache,
		func(ctx context.Context, input string) (string, error) {
			<-release
			return input, nil
		},
		false,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := readThroughCache.Get(ctx, 1, "payload", NoExpiration)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), 1)
		return ok
	}, time.Second, 5*time.Millisecond, "load continues after the waiter leaves")
}

// blockingLoader returns a loader that signals started and then waits for release.
func blockingLoader(started chan<- string, release <-chan struct{}) func(context.Context, string) (string, error) {
	return func(ctx context.Context, input string) (string, error) {
		started <- input
		<-release
		return input, nil
	}
}

func TestReadThroughCache_ResetDuringLoadDoesNotStore(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	started := make(chan string, 1)
	release := make(chan struct{})
	readThroughCache := NewReadThroughCache[int64, string, string](cache, blockingLoader(started, release), false)

	done := make(chan string, 1)
	go func() {
		v, err := readThroughCache.Get(context.Background(), 1, "payload", NoExpiration)
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	require.NoError(t, readThroughCache.Reset(context.Background()))
	close(release)

	require.Equal(t, "payload", <-done, "the running caller still gets its value")
	require.Zero(t, cache.Len(context.Background()))
}

func TestReadThroughCache_ForgetDuringLoadOnlyDropsThatKey(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	started := make(chan string, 2)
	release := make(chan struct{})
	readThroughCache := NewReadThroughCache[int64, string, string](cache, blockingLoader(started, release), false)

	var wg sync.WaitGroup
	for key, input := range map[int64]string{1: "one", 2: "two"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := readThroughCache.Get(context.Background(), key, input, NoExpiration)
			assert.NoError(t, err)
		}()
	}

	<-started
	<-started
	require.NoError(t, readThroughCache.Forget(context.Background(), 1))
	close(release)
	wg.Wait()

	_, ok := cache.Get(context.Background(), 1)
	require.False(t, ok)
	v, ok := cache.Get(context.Background(), 2)
	require.True(t, ok)
	require.Equal(t, "two", v)
}

func TestReadThroughCache_ForgetCachedKey(t *testing.T) {
	cache := NewInMemoryCacheManager[int64, string]("tables", NoExpiration, NoCleanup)
	var loads atomic.Int32
	readThroughCache := NewReadThroughCache[int64, string, string](cache, func(ctx context.Context, input string) (string, error) {
		loads.Add(1)
		return input, nil
	}, false)

	_, err := readThroughCache.Get(context.Background(), 1, "a", NoExpiration)
	require.NoError(t, err)
	require.NoError(t, readThroughCache.Forget(context.Background(), 1))

	v, err := readThroughCache.Get(context.Background(), 1, "b", NoExpiration)
	require.NoError(t, err)
	require.Equal(t, "b", v)
	require.Equal(t, int32(2), loads.Load())
}
