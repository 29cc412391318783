package orders

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// Repository persists orders and their items. Payment code uses the locking
// reads inside its own transaction via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	FindForUser(ctx context.Context, userID, orderID int64) (*models.Order, error)
	ListForUser(ctx context.Context, userID int64, q ListQuery, cursor *pagination.Cursor) ([]models.Order, error)
	UpdatePayment(ctx context.Context, orderID int64, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func withItems(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id") })
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	return r.first(withItems(r.db.WithContext(ctx)).Where("id = ?", orderID))
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
// Items are not loaded.
func (r *repository) FindByIDForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID))
}

func (r *repository) FindForUser(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	return r.first(withItems(r.db.WithContext(ctx)).Where("id = ? AND user_id = ?", orderID, userID))
}

func (r *repository) first(q *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := q.First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64, q ListQuery, cursor *pagination.Cursor) ([]models.Order, error) {
	tx := withItems(r.db.WithContext(ctx)).Where("user_id = ?", userID)
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.PaymentStatus != "" {
		tx = tx.Where("payment_status = ?", q.PaymentStatus)
	}
	if cursor != nil {
		tx = tx.Where("id < ?", cursor.ID)
	}
	var rows []models.Order
	err := tx.Order("id DESC").Limit(q.Page.Fetch()).Find(&rows).Error
	return rows, err
}

func (r *repository) UpdatePayment(ctx context.Context, orderID int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
