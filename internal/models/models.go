package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Event is a schedulable BBQ event that moves through the status lifecycle.
// ProductsCount is denormalized and maintained via explicit increments; it must
// always equal the number of EventProduct rows for the event.
type Event struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	EventAt       time.Time      `gorm:"not null;index" json:"event_at"`
	DeadlineAt    time.Time      `gorm:"not null" json:"deadline_at"`
	Status        EventStatus    `gorm:"type:varchar(32);not null;index" json:"status"`
	ProductsCount int            `gorm:"not null;default:0" json:"products_count"`
	Products      []EventProduct `gorm:"foreignKey:EventID" json:"-"`
}

// Product is a catalog item. IsStandard marks products that are assigned to
// every new event by default.
type Product struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	Name       string         `gorm:"not null;index" json:"name"`
	CategoryID uuid.UUID      `gorm:"type:uuid;not null;index" json:"category_id"`
	IsStandard bool           `gorm:"not null;default:false" json:"is_standard"`
	Category   Category       `gorm:"foreignKey:CategoryID" json:"-"`
}

// Category is a read-only lookup table for product categories.
type Category struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
}

// EventProduct links one product to one event. CategoryID and AddedAsStandard
// are snapshots taken at assignment time; the set of rows for an event is
// immutable once the event leaves the draft status.
type EventProduct struct {
	EventID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"event_id"`
	ProductID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	CategoryID      uuid.UUID `gorm:"type:uuid" json:"category_id"`
	AddedAsStandard bool      `gorm:"not null;default:false" json:"added_as_standard"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Category{},
		&Product{},
		&Event{},
		&EventProduct{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
