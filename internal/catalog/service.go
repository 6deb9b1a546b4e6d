package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-storefront/internal/platform/httpx"
)

// Gateway is the full remote catalog collaborator used by the admin service.
type Gateway interface {
	Source
	CreateProduct(ctx context.Context, in ProductInput) (RawProduct, error)
	UpdateProduct(ctx context.Context, id string, patch ProductPatch) (RawProduct, error)
	DeleteProduct(ctx context.Context, id string) error
	CreateCategory(ctx context.Context, in CategoryInput) (RawCategory, error)
	UpdateCategory(ctx context.Context, id string, in CategoryInput) (RawCategory, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Bumper announces catalog changes to other processes.
type Bumper interface {
	Bump(ctx context.Context) (int64, error)
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Gateway    Gateway
	Store      *Store
	Normalizer *Normalizer
	Events     EventPublisher
	Bumper     Bumper
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service implements the admin catalog operations. Each mutation goes to the
// gateway first and touches the cache only after the gateway confirms it.
type Service struct {
	gateway    Gateway
	store      *Store
	normalizer *Normalizer
	events     EventPublisher
	bumper     Bumper
	logger     *slog.Logger
	clock      func() time.Time
	validate   *validator.Validate
}

// NewService builds a Service.
func NewService(cfg ServiceConfig) *Service {
	svc := &Service{
		gateway:    cfg.Gateway,
		store:      cfg.Store,
		normalizer: cfg.Normalizer,
		events:     cfg.Events,
		bumper:     cfg.Bumper,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		validate:   validator.New(),
	}
	if svc.normalizer == nil {
		svc.normalizer = NewNormalizer(nil)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	return svc
}

// AddProduct creates a product upstream and credits its category.
func (s *Service) AddProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := s.check(in); err != nil {
		return Product{}, err
	}
	if in.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	if err := s.ready(ctx); err != nil {
		return Product{}, err
	}
	raw, err := s.gateway.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: create product: %w", err)
	}
	p := s.normalizer.Normalize(raw, s.store.Categories())
	if p.ID == "" {
		return Product{}, fmt.Errorf("catalog: create product: %w: upstream record has no id", httpx.ErrUnavailable)
	}
	s.store.ApplyCreated(p)

	evt := newChangeEvent(EventProductCreated, p.ID, s.clock())
	evt.Product = &p
	s.announce(ctx, evt)
	return p, nil
}

// UpdateProduct patches a product upstream and moves its count when the
// category changed.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id required", httpx.ErrValidation)
	}
	if err := s.check(patch); err != nil {
		return Product{}, err
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return Product{}, fmt.Errorf("%w: price must not be negative", httpx.ErrValidation)
	}
	if err := s.ready(ctx); err != nil {
		return Product{}, err
	}
	raw, err := s.gateway.UpdateProduct(ctx, id, patch)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: update product %s: %w", id, err)
	}
	p := s.normalizer.Normalize(raw, s.store.Categories())
	if p.ID == "" {
		p.ID = id
	}
	s.store.ApplyUpdated(p)

	evt := newChangeEvent(EventProductUpdated, p.ID, s.clock())
	evt.Product = &p
	s.announce(ctx, evt)
	return p, nil
}

// DeleteProduct deletes a product upstream and debits its category.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: product id required", httpx.ErrValidation)
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.gateway.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete product %s: %w", id, err)
	}
	s.store.ApplyDeleted(id)
	s.announce(ctx, newChangeEvent(EventProductDeleted, id, s.clock()))
	return nil
}

// AddCategory creates a category upstream.
func (s *Service) AddCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in = categoryDefaults(in)
	if err := s.check(in); err != nil {
		return Category{}, err
	}
	if err := s.ready(ctx); err != nil {
		return Category{}, err
	}
	raw, err := s.gateway.CreateCategory(ctx, in)
	if err != nil {
		return Category{}, fmt.Errorf("catalog: create category: %w", err)
	}
	c := s.normalizer.NormalizeCategory(raw)
	snap := s.store.ApplyCategoryUpserted(c)
	if stored, ok := snap.Category(c.ID); ok {
		c = stored
	}

	evt := newChangeEvent(EventCategoryCreated, c.ID, s.clock())
	evt.Category = &c
	s.announce(ctx, evt)
	return c, nil
}

// UpdateCategory updates a category upstream. The maintained count is kept.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id required", httpx.ErrValidation)
	}
	in = categoryDefaults(in)
	if err := s.check(in); err != nil {
		return Category{}, err
	}
	if err := s.ready(ctx); err != nil {
		return Category{}, err
	}
	raw, err := s.gateway.UpdateCategory(ctx, id, in)
	if err != nil {
		return Category{}, fmt.Errorf("catalog: update category %s: %w", id, err)
	}
	c := s.normalizer.NormalizeCategory(raw)
	if !raw.ID.Set && !raw.LegacyID.Set {
		c.ID = id
	}
	snap := s.store.ApplyCategoryUpserted(c)
	if stored, ok := snap.Category(c.ID); ok {
		c = stored
	}

	evt := newChangeEvent(EventCategoryUpdated, c.ID, s.clock())
	evt.Category = &c
	s.announce(ctx, evt)
	return c, nil
}

// DeleteCategory deletes a category upstream.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: category id required", httpx.ErrValidation)
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.gateway.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("catalog: delete category %s: %w", id, err)
	}
	s.store.ApplyCategoryDeleted(id)
	s.announce(ctx, newChangeEvent(EventCategoryDeleted, id, s.clock()))
	return nil
}

// ready loads the catalog so mutations land on a complete snapshot and the
// accounting hooks see the category list.
func (s *Service) ready(ctx context.Context) error {
	if _, err := s.store.Load(ctx); err != nil {
		return fmt.Errorf("catalog: load before mutation: %w", err)
	}
	return nil
}

func categoryDefaults(in CategoryInput) CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	}
	if in.Icon == "" {
		in.Icon = DefaultCategoryIcon
	}
	return in
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
}

// announce runs after the mutation has been committed, so failures here are
// logged rather than returned.
func (s *Service) announce(ctx context.Context, evt ChangeEvent) {
	if s.events != nil {
		if err := s.events.PublishChange(ctx, evt); err != nil {
			s.logger.Warn("publish catalog change", slog.String("type", evt.Type), slog.String("entity_id", evt.EntityID), slog.Any("error", err))
		}
	}
	if s.bumper != nil {
		if _, err := s.bumper.Bump(ctx); err != nil {
			s.logger.Warn("bump catalog version", slog.Any("error", err))
		}
	}
}
