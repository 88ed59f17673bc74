package services

import (
	"context"
	"testing"
	"time"

	"github.com/aah91/bbq-buddy/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type catalogFixture struct {
	service    *CatalogService
	products   *MockProductRepository
	categories *MockCategoryRepository
}

func newCatalogFixture() *catalogFixture {
	f := &catalogFixture{
		products:   new(MockProductRepository),
		categories: new(MockCategoryRepository),
	}
	f.service = NewCatalogService(f.products, f.categories, nil)
	return f
}

func TestProductsLoadedOnce(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	f.products.On("List", ctx).
		Return([]models.Product{{ID: uuid.New(), Name: "Bratwurst"}}, nil).Once()

	first, err := f.service.Products(ctx)
	require.NoError(t, err)
	second, err := f.service.Products(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	f.products.AssertNumberOfCalls(t, "List", 1)
}

func TestCategoryNameFallsBackToID(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	known := models.Category{ID: uuid.New(), Name: "Fleisch"}
	f.categories.On("List", ctx).Return([]models.Category{known}, nil).Once()

	require.Equal(t, "Fleisch", f.service.CategoryName(ctx, known.ID))
	unknown := uuid.New()
	require.Equal(t, unknown.String(), f.service.CategoryName(ctx, unknown))
}

func TestCreateProductValidatesAndInvalidates(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	catID := uuid.New()

	_, err := f.service.CreateProduct(ctx, ProductInput{Name: "  ", CategoryID: catID})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.service.CreateProduct(ctx, ProductInput{Name: "Steak"})
	require.ErrorIs(t, err, ErrValidation)
	f.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	f.products.On("List", ctx).Return([]models.Product{}, nil).Once()
	_, err = f.service.Products(ctx)
	require.NoError(t, err)

	f.products.On("Create", ctx, mock.MatchedBy(func(p *models.Product) bool {
		return p.Name == "Steak" && p.CategoryID == catID && p.ID != uuid.Nil
	})).Return(nil).Once()
	_, err = f.service.CreateProduct(ctx, ProductInput{Name: " Steak ", CategoryID: catID})
	require.NoError(t, err)

	// The memoized catalog was invalidated, so the next read hits the gateway.
	f.products.On("List", ctx).
		Return([]models.Product{{ID: uuid.New(), Name: "Steak", CategoryID: catID}}, nil).Once()
	reloaded, err := f.service.Products(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	f.products.AssertNumberOfCalls(t, "List", 2)
}

func TestFilterProductsSearchFilterSort(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	meat := models.Category{ID: uuid.New(), Name: "Fleisch"}
	veg := models.Category{ID: uuid.New(), Name: "Vegetarisch"}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	catalog := []models.Product{
		{ID: uuid.New(), Name: "Bratwurst", CategoryID: meat.ID, IsStandard: true, UpdatedAt: now.Add(-time.Hour)},
		{ID: uuid.New(), Name: "Steak", CategoryID: meat.ID, UpdatedAt: now},
		{ID: uuid.New(), Name: "Halloumi", CategoryID: veg.ID, IsStandard: true, UpdatedAt: now.Add(-2 * time.Hour)},
	}
	f.products.On("List", ctx).Return(catalog, nil).Once()
	f.categories.On("List", ctx).Return([]models.Category{meat, veg}, nil).Once()

	byName, err := f.service.FilterProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"Bratwurst", "Halloumi", "Steak"}, names(byName))

	searched, err := f.service.FilterProducts(ctx, ProductFilter{Term: "STE"})
	require.NoError(t, err)
	require.Equal(t, []string{"Steak"}, names(searched))

	standardOnly, err := f.service.FilterProducts(ctx, ProductFilter{OnlyStandard: true})
	require.NoError(t, err)
	require.Equal(t, []string{"Bratwurst", "Halloumi"}, names(standardOnly))

	byCategory, err := f.service.FilterProducts(ctx, ProductFilter{CategoryID: veg.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"Halloumi"}, names(byCategory))

	byChange, err := f.service.FilterProducts(ctx, ProductFilter{Sort: "changed-desc"})
	require.NoError(t, err)
	require.Equal(t, []string{"Steak", "Bratwurst", "Halloumi"}, names(byChange))

	byCat, err := f.service.FilterProducts(ctx, ProductFilter{Sort: "cat-asc"})
	require.NoError(t, err)
	require.Equal(t, []string{"Bratwurst", "Steak", "Halloumi"}, names(byCat))
}

func names(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}
