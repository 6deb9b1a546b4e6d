package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, gw *fakeGateway, clock *fakeClock) *Store {
	t.Helper()
	fallback, err := LoadFallback()
	require.NoError(t, err)
	return NewStore(StoreConfig{
		Source:   gw,
		Fallback: fallback,
		Clock:    clock.Now,
		Metrics:  NewMetrics(nil),
	})
}

func TestLoadWithinTTLFetchesOnce(t *testing.T) {
	gw := upstreamFixture(t)
	clock := newFakeClock()
	store := newTestStore(t, gw, clock)
	ctx := context.Background()

	first, err := store.Load(ctx)
	require.NoError(t, err)
	clock.Advance(DefaultTTL - time.Second)
	second, err := store.Load(ctx)
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, gw.fetches())
	require.Equal(t, StateFresh, store.State())
	require.Len(t, first.Products, 4)
	require.Nil(t, first.Err)
}

func TestLoadNormalizesAgainstLoadedCategories(t *testing.T) {
	store := newTestStore(t, upstreamFixture(t), newFakeClock())
	snap, err := store.Load(context.Background())
	require.NoError(t, err)

	iphone, ok := snap.Product("10")
	require.True(t, ok)
	require.Equal(t, CategoryRef{ID: "1", Name: "Điện thoại"}, iphone.Category)
	require.Equal(t, 45, iphone.Stock)

	thinkpad, ok := snap.Product("13")
	require.True(t, ok)
	require.Equal(t, CategoryRef{ID: "2", Name: "Laptop"}, thinkpad.Category)

	require.Empty(t, Recount(snap.Products, snap.Categories))
}

func TestLoadFallsBackWhenUpstreamFails(t *testing.T) {
	gw := upstreamFixture(t)
	gw.listErr = errUpstreamDown
	clock := newFakeClock()
	store := newTestStore(t, gw, clock)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Fallback)
	require.ErrorIs(t, snap.Err, errUpstreamDown)
	require.Len(t, snap.Products, 8)
	require.Equal(t, StateFallback, store.State())

	view := store.View()
	require.NotEmpty(t, view.Error)
	require.Equal(t, "fallback", view.State)

	clock.Advance(2 * DefaultTTL)
	again, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Same(t, snap, again)
	require.Equal(t, 1, gw.fetches())
}

func TestFallbackMutationsDoNotLeakIntoDataset(t *testing.T) {
	gw := &fakeGateway{listErr: errUpstreamDown}
	fallback, err := LoadFallback()
	require.NoError(t, err)
	store := NewStore(StoreConfig{Source: gw, Fallback: fallback, Clock: newFakeClock().Now})

	_, err = store.Load(context.Background())
	require.NoError(t, err)
	store.ApplyDeleted("fb-1")

	require.Len(t, fallback.Products, 8)
	require.Equal(t, 2, fallback.Categories[0].ProductCount)
	require.Equal(t, 1, store.Snapshot().Categories[0].ProductCount)
}

func TestRefreshBypassesTTL(t *testing.T) {
	gw := upstreamFixture(t)
	store := newTestStore(t, gw, newFakeClock())
	ctx := context.Background()

	first, err := store.Load(ctx)
	require.NoError(t, err)
	refreshed, err := store.Refresh(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, gw.fetches())
	require.NotSame(t, first, refreshed)
	require.Same(t, refreshed, store.Snapshot())
}

func TestRefreshRecoversFromFallback(t *testing.T) {
	gw := upstreamFixture(t)
	gw.listErr = errUpstreamDown
	store := newTestStore(t, gw, newFakeClock())
	ctx := context.Background()

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, snap.Fallback)

	gw.setListErr(nil)
	snap, err = store.Refresh(ctx)
	require.NoError(t, err)
	require.False(t, snap.Fallback)
	require.Nil(t, snap.Err)
	require.Len(t, snap.Products, 4)
}

func TestStaleLoadServesOldDataAndReloadsInBackground(t *testing.T) {
	gw := upstreamFixture(t)
	clock := newFakeClock()
	store := newTestStore(t, gw, clock)
	ctx := context.Background()

	first, err := store.Load(ctx)
	require.NoError(t, err)
	clock.Advance(DefaultTTL + time.Second)
	require.Equal(t, StateStale, store.State())

	stale, err := store.Load(ctx)
	require.NoError(t, err)
	require.Same(t, first, stale)

	store.Drain()
	require.Equal(t, 2, gw.fetches())
	require.NotSame(t, first, store.Snapshot())
	require.Equal(t, StateFresh, store.State())
}

func TestStaleReloadFailureKeepsUpstreamData(t *testing.T) {
	gw := upstreamFixture(t)
	clock := newFakeClock()
	store := newTestStore(t, gw, clock)
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.NoError(t, err)
	gw.setListErr(errUpstreamDown)
	clock.Advance(DefaultTTL)

	_, err = store.Load(ctx)
	require.NoError(t, err)
	store.Drain()

	snap := store.Snapshot()
	require.False(t, snap.Fallback)
	require.Len(t, snap.Products, 4)
	require.ErrorIs(t, snap.Err, errUpstreamDown)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	gw := upstreamFixture(t)
	gw.started = make(chan struct{}, 1)
	gw.release = make(chan struct{})
	store := newTestStore(t, gw, newFakeClock())
	ctx := context.Background()

	const callers = 8
	results := make([]*Snapshot, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = store.Load(ctx)
	}()
	<-gw.started
	require.Equal(t, StateLoading, store.State())
	require.True(t, store.View().Loading)

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.Load(ctx)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gw.release)
	wg.Wait()

	require.Equal(t, 1, gw.fetches())
	for i := 1; i < callers; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestLoadReturnsContextError(t *testing.T) {
	gw := upstreamFixture(t)
	gw.started = make(chan struct{}, 1)
	gw.release = make(chan struct{})
	store := newTestStore(t, gw, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := store.Load(ctx)
		done <- err
	}()
	<-gw.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(gw.release)
	require.Eventually(t, func() bool { return store.Snapshot() != nil }, time.Second, 5*time.Millisecond)
}

func TestApplyMutationsKeepCountsAndSnapshotsImmutable(t *testing.T) {
	store := newTestStore(t, upstreamFixture(t), newFakeClock())
	before, err := store.Load(context.Background())
	require.NoError(t, err)

	laptop := func(s *Snapshot) int {
		c, ok := s.Category("2")
		require.True(t, ok)
		return c.ProductCount
	}
	require.Equal(t, 3, laptop(before))

	created := store.ApplyCreated(Product{ID: "20", Name: "Zenbook", Stock: 4, Category: CategoryRef{ID: "2", Name: "Laptop"}})
	require.Equal(t, 4, laptop(created))
	require.Equal(t, 3, laptop(before))
	require.Len(t, before.Products, 4)

	again := store.ApplyCreated(Product{ID: "20", Name: "Zenbook 14", Stock: 4, Category: CategoryRef{ID: "2", Name: "Laptop"}})
	require.Equal(t, 4, laptop(again))

	moved := store.ApplyUpdated(Product{ID: "20", Name: "Zenbook 14", Stock: 4, Category: CategoryRef{ID: "1", Name: "Điện thoại"}})
	require.Equal(t, 3, laptop(moved))
	phones, _ := moved.Category("1")
	require.Equal(t, 2, phones.ProductCount)

	deleted := store.ApplyDeleted("20")
	phones, _ = deleted.Category("1")
	require.Equal(t, 1, phones.ProductCount)
	require.Empty(t, Recount(deleted.Products, deleted.Categories))

	unchanged := store.ApplyDeleted("does-not-exist")
	require.Equal(t, deleted.Products, unchanged.Products)
}

func TestApplyCategoryUpsertedCreditsOrphans(t *testing.T) {
	store := newTestStore(t, upstreamFixture(t), newFakeClock())
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	store.ApplyCreated(Product{ID: "30", Name: "DJI Mini", Stock: 3, Category: CategoryRef{ID: "9", Name: "Category 9", Placeholder: true}})
	snap := store.ApplyCategoryUpserted(Category{ID: "9", Name: "Drones", Slug: "drones", Icon: DefaultCategoryIcon})

	drones, ok := snap.Category("9")
	require.True(t, ok)
	require.Equal(t, 1, drones.ProductCount)
	drone, _ := snap.Product("30")
	require.Equal(t, CategoryRef{ID: "9", Name: "Drones"}, drone.Category)
	require.Empty(t, Recount(snap.Products, snap.Categories))

	renamed := store.ApplyCategoryUpserted(Category{ID: "9", Name: "Flycams", Slug: "flycams"})
	drones, _ = renamed.Category("9")
	require.Equal(t, "Flycams", drones.Name)
	require.Equal(t, 1, drones.ProductCount)

	removed := store.ApplyCategoryDeleted("9")
	_, ok = removed.Category("9")
	require.False(t, ok)
}

func TestStateBeforeFirstLoad(t *testing.T) {
	store := NewStore(StoreConfig{})
	require.Equal(t, StateEmpty, store.State())
	view := store.View()
	require.Empty(t, view.Products)
	require.Equal(t, "empty", view.State)
}

func TestLoadFetchesWhenOnlyMutationsWereApplied(t *testing.T) {
	gw := upstreamFixture(t)
	store := newTestStore(t, gw, newFakeClock())

	store.ApplyCreated(Product{ID: "20", Name: "Zenbook", Stock: 4, Category: CategoryRef{ID: "2", Name: "Laptop"}})
	require.Equal(t, 0, gw.fetches())

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, gw.fetches())
	require.False(t, snap.LoadedAt.IsZero())
	require.Len(t, snap.Categories, 2)
	require.Len(t, snap.Products, 4)
	require.Equal(t, StateFresh, store.State())
}

func TestFailedRefreshMarksKeptDataStale(t *testing.T) {
	gw := upstreamFixture(t)
	store := newTestStore(t, gw, newFakeClock())
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, StateFresh, store.State())

	gw.setListErr(errUpstreamDown)
	kept, err := store.Refresh(ctx)
	require.NoError(t, err)
	require.False(t, kept.Fallback)
	require.Len(t, kept.Products, 4)
	require.ErrorIs(t, kept.Err, errUpstreamDown)
	require.Equal(t, StateStale, store.State())

	gw.setListErr(nil)
	_, err = store.Load(ctx)
	require.NoError(t, err)
	store.Drain()
	require.Equal(t, 3, gw.fetches())
	require.Nil(t, store.Snapshot().Err)
	require.Equal(t, StateFresh, store.State())
}
