package statscache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/territory-mapper/internal/census"
	"github.com/stwalsh4118/territory-mapper/internal/logger"
	"github.com/stwalsh4118/territory-mapper/internal/models"
)

var (
	losAngeles = models.UnitRef{Kind: models.KindCounty, ID: "06037"}
	beverly    = models.UnitRef{Kind: models.KindZip, ID: "90210"}
)

// funcLookup adapts a function to census.Lookup and counts calls.
type funcLookup struct {
	calls int32
	fn    func(ctx context.Context, ref models.UnitRef) (models.UnitStats, error)
}

func (f *funcLookup) Lookup(ctx context.Context, ref models.UnitRef) (models.UnitStats, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, ref)
}

func (f *funcLookup) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// MockStore is a mock implementation of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, ref models.UnitRef) (models.UnitStats, bool, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(models.UnitStats), args.Bool(1), args.Error(2)
}

func (m *MockStore) Set(ctx context.Context, ref models.UnitRef, stats models.UnitStats, ttl time.Duration) error {
	args := m.Called(ctx, ref, stats, ttl)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestStats_FetchesOncePerUnit(t *testing.T) {
	lookup := &funcLookup{fn: func(_ context.Context, ref models.UnitRef) (models.UnitStats, error) {
		if ref == losAngeles {
			return models.UnitStats{Population: 100, StandAloneHouses: 10}, nil
		}
		return models.UnitStats{Population: 5, StandAloneHouses: 1}, nil
	}}
	cache := New(lookup, logger.Nop(), nil)

	for i := 0; i < 3; i++ {
		stats, err := cache.Stats(context.Background(), losAngeles)
		require.NoError(t, err)
		assert.Equal(t, int64(100), stats.Population)
	}
	_, err := cache.Stats(context.Background(), beverly)
	require.NoError(t, err)

	assert.Equal(t, 2, lookup.Calls())
	assert.Equal(t, 2, cache.Len())

	peeked, ok := cache.Peek(beverly)
	assert.True(t, ok)
	assert.Equal(t, int64(5), peeked.Population)
}

func TestStats_FailuresAreNotCached(t *testing.T) {
	fail := true
	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		if fail {
			return models.UnitStats{}, census.ErrStatisticsUnavailable
		}
		return models.UnitStats{Population: 7}, nil
	}}
	cache := New(lookup, logger.Nop(), nil)

	_, err := cache.Stats(context.Background(), losAngeles)
	assert.ErrorIs(t, err, census.ErrStatisticsUnavailable)
	_, ok := cache.Peek(losAngeles)
	assert.False(t, ok)

	fail = false
	stats, err := cache.Stats(context.Background(), losAngeles)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Population)
	assert.Equal(t, 2, lookup.Calls())
}

func TestStats_CollapsesConcurrentLookups(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return models.UnitStats{Population: 42}, nil
	}}
	cache := New(lookup, logger.Nop(), nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]models.UnitStats, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.Stats(context.Background(), losAngeles)
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Stats(context.Background(), losAngeles)
		}(i)
	}

	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(42), results[i].Population)
	}
	assert.Equal(t, 1, lookup.Calls())
}

func TestStats_CanceledCallerDoesNotAbortFetch(t *testing.T) {
	release := make(chan struct{})
	lookup := &funcLookup{fn: func(ctx context.Context, _ models.UnitRef) (models.UnitStats, error) {
		<-release
		if ctx.Err() != nil {
			return models.UnitStats{}, ctx.Err()
		}
		return models.UnitStats{Population: 9}, nil
	}}
	cache := New(lookup, logger.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Stats(ctx, losAngeles)
		done <- err
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool {
		_, ok := cache.Peek(losAngeles)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestStats_StoreHit(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, losAngeles).Return(models.UnitStats{Population: 11, StandAloneHouses: 3}, true, nil).Once()

	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		t.Error("lookup should not be called on a store hit")
		return models.UnitStats{}, nil
	}}
	cache := New(lookup, logger.Nop(), nil, WithStore(store, time.Hour))

	stats, err := cache.Stats(context.Background(), losAngeles)
	require.NoError(t, err)
	assert.Equal(t, int64(11), stats.Population)

	// Second call is served from memory.
	_, err = cache.Stats(context.Background(), losAngeles)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestStats_StoreMissWritesBack(t *testing.T) {
	fetched := models.UnitStats{Population: 20, StandAloneHouses: 4}
	store := new(MockStore)
	store.On("Get", mock.Anything, beverly).Return(models.UnitStats{}, false, nil).Once()
	store.On("Set", mock.Anything, beverly, fetched, 24*time.Hour).Return(nil).Once()

	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		return fetched, nil
	}}
	cache := New(lookup, logger.Nop(), nil, WithStore(store, 24*time.Hour))

	stats, err := cache.Stats(context.Background(), beverly)
	require.NoError(t, err)
	assert.Equal(t, fetched, stats)
	store.AssertExpectations(t)
}

func TestStats_StoreErrorsAreMisses(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, beverly).Return(models.UnitStats{}, false, errors.New("connection refused")).Once()
	store.On("Set", mock.Anything, beverly, mock.Anything, time.Duration(0)).Return(errors.New("connection refused")).Once()

	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		return models.UnitStats{Population: 1}, nil
	}}
	cache := New(lookup, logger.Nop(), nil, WithStore(store, 0))

	stats, err := cache.Stats(context.Background(), beverly)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Population)
	assert.Equal(t, 1, lookup.Calls())
	store.AssertExpectations(t)
}

func TestPing(t *testing.T) {
	cache := New(&funcLookup{}, logger.Nop(), nil)
	assert.NoError(t, cache.Ping(context.Background()))
	assert.False(t, cache.HasStore())

	store := new(MockStore)
	store.On("Ping", mock.Anything).Return(errors.New("down")).Once()
	cache = New(&funcLookup{}, logger.Nop(), nil, WithStore(store, 0))
	assert.Error(t, cache.Ping(context.Background()))
	assert.True(t, cache.HasStore())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "territory:stats:county:06037", Key(losAngeles))
	assert.Equal(t, "territory:stats:zip:90210", Key(beverly))
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	store := NewRedisStore(client)
	defer store.Close() //nolint:errcheck

	ctx := context.Background()
	_, ok, err := store.Get(ctx, losAngeles)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, store.Set(ctx, losAngeles, models.UnitStats{Population: 1}, time.Minute))
	assert.Error(t, store.Ping(ctx))

	// The cache still answers from the upstream lookup.
	lookup := &funcLookup{fn: func(context.Context, models.UnitRef) (models.UnitStats, error) {
		return models.UnitStats{Population: 3}, nil
	}}
	cache := New(lookup, logger.Nop(), nil, WithStore(store, time.Minute))
	stats, err := cache.Stats(ctx, losAngeles)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Population)
}
