package payments

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// TransactionRepository persists payment transactions.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	if tx == nil {
		return r
	}
	return &TransactionRepository{db: tx}
}

func (r *TransactionRepository) Create(ctx context.Context, row *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *TransactionRepository) Save(ctx context.Context, row *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *TransactionRepository) FindByTransactionID(ctx context.Context, tranID string) (*models.PaymentTransaction, error) {
	var row models.PaymentTransaction
	if err := r.db.WithContext(ctx).First(&row, "transaction_id = ?", tranID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByTransactionIDForUpdate holds a row lock until the transaction ends.
func (r *TransactionRepository) FindByTransactionIDForUpdate(ctx context.Context, tranID string) (*models.PaymentTransaction, error) {
	var row models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "transaction_id = ?", tranID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByOrder returns every attempt for the order, oldest first.
func (r *TransactionRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListStalePending returns pending attempts created before cutoff, oldest
// first. Pushbacks that never arrived leave rows in this state.
func (r *TransactionRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentTransaction, error) {
	var rows []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
