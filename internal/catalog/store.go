package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded catalog is served without refetching.
const DefaultTTL = 5 * time.Minute

// DefaultFetchLimit caps the number of products requested per load.
const DefaultFetchLimit = 100

const (
	flightLoad    = "load"
	flightRefresh = "refresh"
)

// State is the cache lifecycle state.
type State int

// Cache states.
const (
	StateEmpty State = iota
	StateLoading
	StateFresh
	StateStale
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateFallback:
		return "fallback"
	default:
		return "empty"
	}
}

// Source is the read side of the remote catalog gateway.
type Source interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]RawProduct, error)
	ListCategories(ctx context.Context) ([]RawCategory, error)
}

// StoreConfig groups Store dependencies and tuning.
type StoreConfig struct {
	Source       Source
	Normalizer   *Normalizer
	Accounting   *Accounting
	Fallback     *Dataset
	TTL          time.Duration
	FetchLimit   int
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Metrics      *Metrics
	Clock        func() time.Time
}

// Store owns the canonical product and category lists. Readers receive
// immutable snapshots without locking; writes are serialized and publish a
// fresh snapshot.
type Store struct {
	source       Source
	normalizer   *Normalizer
	accounting   *Accounting
	fallback     *Dataset
	ttl          time.Duration
	fetchLimit   int
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics
	clock        func() time.Time

	current   atomic.Pointer[Snapshot]
	writeMu   sync.Mutex
	group     singleflight.Group
	inflight  atomic.Int32
	reloading atomic.Bool
	bg        sync.WaitGroup
}

// NewStore constructs a Store.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		source:       cfg.Source,
		normalizer:   cfg.Normalizer,
		accounting:   cfg.Accounting,
		fallback:     cfg.Fallback,
		ttl:          cfg.TTL,
		fetchLimit:   cfg.FetchLimit,
		fetchTimeout: cfg.FetchTimeout,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		clock:        cfg.Clock,
	}
	if s.normalizer == nil {
		s.normalizer = NewNormalizer(nil)
	}
	if s.accounting == nil {
		s.accounting = NewAccounting(nil)
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.fetchLimit <= 0 {
		s.fetchLimit = DefaultFetchLimit
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = 30 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Snapshot returns the current snapshot without triggering I/O. It is nil
// before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// State reports the lifecycle state of the cache.
func (s *Store) State() State {
	snap := s.current.Load()
	switch {
	case snap == nil && s.inflight.Load() > 0:
		return StateLoading
	case snap == nil:
		return StateEmpty
	case snap.Fallback:
		return StateFallback
	case s.inflight.Load() > 0 && snap.Empty():
		return StateLoading
	case s.fresh(snap):
		return StateFresh
	default:
		return StateStale
	}
}

// View renders the reactive catalog state for presentation collaborators.
func (s *Store) View() View {
	snap := s.current.Load()
	v := View{
		Products:   []Product{},
		Categories: []Category{},
		Loading:    s.inflight.Load() > 0,
		State:      s.State().String(),
	}
	if snap == nil {
		return v
	}
	v.Products = snap.Products
	v.Categories = snap.Categories
	v.Fallback = snap.Fallback
	v.LoadedAt = snap.LoadedAt
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

// loaded reports whether snap came from a fetch or the fallback. Mutations
// applied before the first fetch leave a partial snapshot with no LoadedAt.
func loaded(snap *Snapshot) bool {
	return !snap.Empty() && !snap.LoadedAt.IsZero()
}

func (s *Store) fresh(snap *Snapshot) bool {
	return s.clock().Sub(snap.LoadedAt) < s.ttl
}

// Load returns the cached catalog when it is fresh, returns stale data while
// reloading in the background, and blocks on a fetch only when the cache is
// empty. Upstream failures never surface here: the fallback dataset is served
// and the snapshot's Err records the cause. The only error is ctx's.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap := s.current.Load()
	if loaded(snap) {
		if snap.Fallback || s.fresh(snap) {
			s.metrics.load("hit")
			return snap, nil
		}
		s.metrics.load("stale")
		s.reloadInBackground()
		return snap, nil
	}
	s.metrics.load("miss")
	return s.fetch(ctx, flightLoad)
}

// Refresh discards freshness and refetches regardless of TTL.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	return s.fetch(ctx, flightRefresh)
}

// Drain waits for background reloads to finish.
func (s *Store) Drain() {
	s.bg.Wait()
}

func (s *Store) reloadInBackground() {
	if !s.reloading.CompareAndSwap(false, true) {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.reloading.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		if _, err := s.fetch(ctx, flightLoad); err != nil {
			s.logger.Warn("catalog background reload", slog.Any("error", err))
		}
	}()
}

func (s *Store) fetch(ctx context.Context, key string) (*Snapshot, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetchAndCommit(fctx), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(*Snapshot)
		return snap, res.Err
	}
}

func (s *Store) fetchAndCommit(ctx context.Context) *Snapshot {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	start := s.clock()

	if s.source == nil {
		return s.commitFailure(errors.New("catalog: no upstream source configured"), start)
	}

	var (
		rawProducts   []RawProduct
		rawCategories []RawCategory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawCategories, err = s.source.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rawProducts, err = s.source.ListProducts(gctx, ListFilter{Limit: s.fetchLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		return s.commitFailure(err, start)
	}

	categories := s.normalizer.NormalizeCategories(rawCategories)
	products := s.normalizer.NormalizeAll(rawProducts, categories)
	snap := &Snapshot{
		Products:   products,
		Categories: categories,
		LoadedAt:   s.clock(),
	}

	s.writeMu.Lock()
	s.publish(snap)
	s.writeMu.Unlock()

	s.metrics.fetched("ok", s.clock().Sub(start))
	s.logger.Info("catalog loaded", slog.Int("products", len(products)), slog.Int("categories", len(categories)))
	return snap
}

// commitFailure keeps previously loaded upstream data, which is never purged,
// and otherwise substitutes the fallback dataset.
func (s *Store) commitFailure(cause error, start time.Time) *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	if loaded(cur) && !cur.Fallback {
		next := cur.clone()
		next.Err = cause
		next.LoadedAt = s.clock().Add(-s.ttl)
		s.publish(next)
		s.metrics.fetched("kept_stale", s.clock().Sub(start))
		s.logger.Warn("catalog fetch failed, keeping stale data", slog.Any("error", cause))
		return next
	}

	next := s.fallback.snapshot()
	next.LoadedAt = s.clock()
	next.Fallback = true
	next.Err = cause
	s.publish(next)
	s.metrics.fetched("fallback", s.clock().Sub(start))
	s.logger.Warn("catalog fetch failed, serving fallback dataset", slog.Int("products", len(next.Products)), slog.Any("error", cause))
	return next
}

func (s *Store) publish(snap *Snapshot) {
	s.current.Store(snap)
	s.metrics.published(snap)
}

// mutate applies fn to a copy of the current snapshot and publishes it.
func (s *Store) mutate(fn func(next *Snapshot)) *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := s.current.Load().clone()
	fn(next)
	s.publish(next)
	return next
}

// Categories returns the categories of the current snapshot.
func (s *Store) Categories() []Category {
	if snap := s.current.Load(); snap != nil {
		return snap.Categories
	}
	return nil
}

// Product looks up a product in the current snapshot.
func (s *Store) Product(id string) (Product, bool) {
	return s.current.Load().Product(id)
}

// ApplyCreated inserts p and credits its category. A product already present
// under the same id is treated as an update so its count moves only once.
func (s *Store) ApplyCreated(p Product) *Snapshot {
	return s.mutate(func(next *Snapshot) {
		if idx := next.productIndex(p.ID); idx >= 0 {
			old := next.Products[idx]
			next.Products[idx] = p
			s.accounting.ProductUpdated(next.Categories, p.ID, old.Category, p.Category)
			return
		}
		next.Products = append(next.Products, p)
		s.accounting.ProductCreated(next.Categories, p)
	})
}

// ApplyUpdated replaces the product and moves its count when the category
// changed. A product missing from the cache is inserted as created.
func (s *Store) ApplyUpdated(p Product) *Snapshot {
	return s.mutate(func(next *Snapshot) {
		idx := next.productIndex(p.ID)
		if idx < 0 {
			next.Products = append(next.Products, p)
			s.accounting.ProductCreated(next.Categories, p)
			return
		}
		old := next.Products[idx]
		next.Products[idx] = p
		s.accounting.ProductUpdated(next.Categories, p.ID, old.Category, p.Category)
	})
}

// ApplyDeleted removes the product and debits its category.
func (s *Store) ApplyDeleted(id string) *Snapshot {
	return s.mutate(func(next *Snapshot) {
		idx := next.productIndex(id)
		if idx < 0 {
			return
		}
		old := next.Products[idx]
		next.Products = append(next.Products[:idx], next.Products[idx+1:]...)
		s.accounting.ProductDeleted(next.Categories, old)
	})
}

// ApplyCategoryUpserted inserts or replaces a category. Replacements keep
// the maintained count and carry renames into product references. A new category is credited with the products whose
// references matched nothing until now, and their placeholders are resolved.
func (s *Store) ApplyCategoryUpserted(c Category) *Snapshot {
	return s.mutate(func(next *Snapshot) {
		for i := range next.Categories {
			if next.Categories[i].ID != c.ID {
				continue
			}
			oldName := next.Categories[i].Name
			c.ProductCount = next.Categories[i].ProductCount
			next.Categories[i] = c
			for j := range next.Products {
				ref := next.Products[j].Category
				switch {
				case ref.ID == c.ID:
					next.Products[j].Category = c.Ref()
				case ref.ID == "" && ref.Name == oldName:
					next.Products[j].Category = CategoryRef{Name: c.Name}
				}
			}
			return
		}

		orphaned := make([]bool, len(next.Products))
		for j := range next.Products {
			orphaned[j] = matchCategory(next.Categories, next.Products[j].Category) < 0
		}
		c.ProductCount = 0
		next.Categories = append(next.Categories, c)
		added := next.Categories[len(next.Categories)-1:]
		for j := range next.Products {
			if !orphaned[j] || matchCategory(added, next.Products[j].Category) < 0 {
				continue
			}
			next.Categories[len(next.Categories)-1].ProductCount++
			if next.Products[j].Category.Placeholder {
				next.Products[j].Category = c.Ref()
			}
		}
	})
}

// ApplyCategoryDeleted removes a category. Products keep their reference.
func (s *Store) ApplyCategoryDeleted(id string) *Snapshot {
	return s.mutate(func(next *Snapshot) {
		for i := range next.Categories {
			if next.Categories[i].ID == id {
				next.Categories = append(next.Categories[:i], next.Categories[i+1:]...)
				return
			}
		}
	})
}
