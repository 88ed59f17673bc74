package repository

import (
	"context"
	"time"

	"github.com/aah91/bbq-buddy/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Cursor is an opaque pagination marker. It identifies the last fetched event
// so a subsequent page resumes strictly after it in (event_at DESC, id DESC)
// order.
type Cursor struct {
	EventAt time.Time
	ID      uuid.UUID
}

// EventRepository provides access to event documents.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListPage(ctx context.Context, statuses []models.EventStatus, limit int, after *Cursor) ([]models.Event, error)
	ListDeadlinePassed(ctx context.Context, status models.EventStatus, before time.Time, limit int) ([]models.Event, error)
	UpdateDates(ctx context.Context, id uuid.UUID, eventAt, deadlineAt time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
	SetProductsCount(ctx context.Context, id uuid.UUID, count int) error
	IncrementProductsCount(ctx context.Context, id uuid.UUID, delta int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssignmentRepository provides access to the product assignments of an event.
type AssignmentRepository interface {
	Add(ctx context.Context, assignment *models.EventProduct) error
	Remove(ctx context.Context, eventID, productID uuid.UUID) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventProduct, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// ProductRepository provides access to catalog products.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	ListStandard(ctx context.Context) ([]models.Product, error)
}

// CategoryRepository provides access to the category lookup table.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
}

// eventRepository implements EventRepository on GORM.
type eventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) EventRepository {
	return &eventRepository{db: db, readOnlyDB: readOnlyDB}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(event).Error, "failed to create event")
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.readOnlyDB.WithContext(ctx).First(&event, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event by ID")
	}
	return &event, nil
}

// ListPage fetches up to limit events in the given statuses, ordered by
// event_at descending, resuming strictly after the cursor when one is set.
func (r *eventRepository) ListPage(ctx context.Context, statuses []models.EventStatus, limit int, after *Cursor) ([]models.Event, error) {
	q := r.readOnlyDB.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("event_at DESC, id DESC").
		Limit(limit)
	if after != nil {
		q = q.Where("event_at < ? OR (event_at = ? AND id < ?)", after.EventAt, after.EventAt, after.ID)
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list event page")
	}
	return events, nil
}

// ListDeadlinePassed fetches events in the given status whose deadline is
// strictly before the given instant. Used by the store-wide fallback sweep.
func (r *eventRepository) ListDeadlinePassed(ctx context.Context, status models.EventStatus, before time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.readOnlyDB.WithContext(ctx).
		Where("status = ? AND deadline_at < ?", status, before).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events with passed deadlines")
	}
	return events, nil
}

func (r *eventRepository) UpdateDates(ctx context.Context, id uuid.UUID, eventAt, deadlineAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"event_at":    eventAt,
			"deadline_at": deadlineAt,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update event dates")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "failed to update event dates")
	}
	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update event status")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(gorm.ErrRecordNotFound, "failed to update event status")
	}
	return nil
}

func (r *eventRepository) SetProductsCount(ctx context.Context, id uuid.UUID, count int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("products_count", count).Error
	return errors.Wrap(err, "failed to set products count")
}

// IncrementProductsCount applies a signed delta to products_count as a single
// atomic statement so concurrent adjustments cannot lose updates.
func (r *eventRepository) IncrementProductsCount(ctx context.Context, id uuid.UUID, delta int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("products_count", gorm.Expr("products_count + ?", delta)).Error
	return errors.Wrap(err, "failed to increment products count")
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.Wrap(
		r.db.WithContext(ctx).Delete(&models.Event{}, "id = ?", id).Error,
		"failed to delete event")
}

// assignmentRepository implements AssignmentRepository on GORM.
type assignmentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB, readOnlyDB *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db, readOnlyDB: readOnlyDB}
}

func (r *assignmentRepository) Add(ctx context.Context, assignment *models.EventProduct) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(assignment).Error, "failed to add assignment")
}

func (r *assignmentRepository) Remove(ctx context.Context, eventID, productID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Delete(&models.EventProduct{}, "event_id = ? AND product_id = ?", eventID, productID).Error
	return errors.Wrap(err, "failed to remove assignment")
}

func (r *assignmentRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventProduct, error) {
	var assignments []models.EventProduct
	err := r.readOnlyDB.WithContext(ctx).
		Where("event_id = ?", eventID).
		Find(&assignments).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assignments")
	}
	return assignments, nil
}

func (r *assignmentRepository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.EventProduct{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count assignments")
	}
	return count, nil
}

// productRepository implements ProductRepository on GORM.
type productRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB, readOnlyDB *gorm.DB) ProductRepository {
	return &productRepository{db: db, readOnlyDB: readOnlyDB}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(product).Error, "failed to create product")
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":        product.Name,
			"category_id": product.CategoryID,
			"is_standard": product.IsStandard,
		}).Error
	return errors.Wrap(err, "failed to update product")
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return errors.Wrap(
		r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error,
		"failed to delete product")
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.readOnlyDB.WithContext(ctx).First(&product, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get product by ID")
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.readOnlyDB.WithContext(ctx).Order("name").Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list products")
	}
	return products, nil
}

func (r *productRepository) ListStandard(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.readOnlyDB.WithContext(ctx).
		Where("is_standard = ?", true).
		Find(&products).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list standard products")
	}
	return products, nil
}

// categoryRepository implements CategoryRepository on GORM.
type categoryRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB, readOnlyDB *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db, readOnlyDB: readOnlyDB}
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.readOnlyDB.WithContext(ctx).Find(&categories).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	return categories, nil
}
