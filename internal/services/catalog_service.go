package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aah91/bbq-buddy/internal/cache"
	"github.com/aah91/bbq-buddy/internal/models"
	"github.com/aah91/bbq-buddy/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const catalogCacheTTL = 5 * time.Minute

// CatalogService manages the product catalog and the category lookup table.
// The full catalog and the categories are loaded at most once per session and
// shared with the assignment reconciler; writes invalidate both levels of
// caching.
type CatalogService struct {
	mu           sync.Mutex
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	cache        *cache.RedisCache

	products   []models.Product          // nil until loaded
	categories map[uuid.UUID]string      // nil until loaded
}

// NewCatalogService creates a new catalog service
func NewCatalogService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, redisCache *cache.RedisCache) *CatalogService {
	return &CatalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		cache:        redisCache,
	}
}

// Products returns the full catalog, name-sorted, loading it on first use.
func (s *CatalogService) Products(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadProductsLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *CatalogService) loadProductsLocked(ctx context.Context) error {
	if s.products != nil {
		return nil
	}

	var cached []models.Product
	if s.cache != nil {
		if err := s.cache.Get(ctx, cache.CatalogProductsKey(), &cached); err == nil {
			s.products = cached
			return nil
		}
	}

	products, err := s.productRepo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load product catalog")
	}
	s.products = products

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CatalogProductsKey(), products, catalogCacheTTL); err != nil {
			log.Debug().Err(err).Msg("could not cache product catalog")
		}
	}
	return nil
}

// Categories returns the category lookup table, loading it on first use.
func (s *CatalogService) Categories(ctx context.Context) (map[uuid.UUID]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadCategoriesLocked(ctx); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(s.categories))
	for id, name := range s.categories {
		out[id] = name
	}
	return out, nil
}

func (s *CatalogService) loadCategoriesLocked(ctx context.Context) error {
	if s.categories != nil {
		return nil
	}

	var cached map[uuid.UUID]string
	if s.cache != nil {
		if err := s.cache.Get(ctx, cache.CatalogCategoriesKey(), &cached); err == nil {
			s.categories = cached
			return nil
		}
	}

	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load categories")
	}
	lookup := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		lookup[c.ID] = c.Name
	}
	s.categories = lookup

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.CatalogCategoriesKey(), lookup, catalogCacheTTL); err != nil {
			log.Debug().Err(err).Msg("could not cache categories")
		}
	}
	return nil
}

// CategoryName resolves a category id to its name, falling back to the raw id.
func (s *CatalogService) CategoryName(ctx context.Context, id uuid.UUID) string {
	categories, err := s.Categories(ctx)
	if err != nil {
		return id.String()
	}
	if name, ok := categories[id]; ok {
		return name
	}
	return id.String()
}

// ProductByID returns a product from the loaded catalog.
func (s *CatalogService) ProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, errors.New("product not found in catalog")
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	Name       string
	CategoryID uuid.UUID
	IsStandard bool
}

// CreateProduct adds a product to the catalog.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.Name) == "" || in.CategoryID == uuid.Nil {
		return nil, errors.Wrap(ErrValidation, "product name and category are required")
	}

	product := &models.Product{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(in.Name),
		CategoryID: in.CategoryID,
		IsStandard: in.IsStandard,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return product, nil
}

// UpdateProduct updates a product's editable fields.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" || in.CategoryID == uuid.Nil {
		return errors.Wrap(ErrValidation, "product name and category are required")
	}

	err := s.productRepo.Update(ctx, &models.Product{
		ID:         id,
		Name:       strings.TrimSpace(in.Name),
		CategoryID: in.CategoryID,
		IsStandard: in.IsStandard,
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteProduct removes a product from the catalog.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	s.mu.Lock()
	s.products = nil
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.CatalogProductsKey()); err != nil {
			log.Debug().Err(err).Msg("could not invalidate catalog cache")
		}
	}
}

// ProductFilter selects and orders catalog rows for the library page.
type ProductFilter struct {
	Term         string
	CategoryID   uuid.UUID
	OnlyStandard bool
	Sort         string // name-asc, name-desc, cat-asc, changed-desc
}

// FilterProducts applies the library page's search, filter and sort controls.
func (s *CatalogService) FilterProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(filter.Term))
	rows := make([]models.Product, 0, len(products))
	for _, p := range products {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		if filter.CategoryID != uuid.Nil && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.OnlyStandard && !p.IsStandard {
			continue
		}
		rows = append(rows, p)
	}

	byName := func(a, b models.Product) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		switch filter.Sort {
		case "name-desc":
			return byName(rows[i], rows[j]) > 0
		case "cat-asc":
			ci := strings.ToLower(categories[rows[i].CategoryID])
			cj := strings.ToLower(categories[rows[j].CategoryID])
			if ci != cj {
				return ci < cj
			}
			return byName(rows[i], rows[j]) < 0
		case "changed-desc":
			if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
				return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
			}
			return byName(rows[i], rows[j]) < 0
		default: // name-asc
			return byName(rows[i], rows[j]) < 0
		}
	})
	return rows, nil
}
