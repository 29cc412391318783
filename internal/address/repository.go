package address

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// Repository persists user addresses.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("type ASC").
		Order("is_default DESC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// LockByUserAndType locks every address of one (user, type) pair so default
// changes for that pair serialize.
func (r *Repository) LockByUserAndType(ctx context.Context, userID int64, addrType enums.AddressType) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND type = ?", userID, addrType).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindOwned loads an address only when it belongs to userID.
func (r *Repository) FindOwned(ctx context.Context, userID, id int64) (*models.Address, error) {
	var row models.Address
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, row *models.Address) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ClearDefault unsets the default flag for the pair, optionally sparing one id.
func (r *Repository) ClearDefault(ctx context.Context, userID int64, addrType enums.AddressType, exceptID int64) error {
	return r.db.WithContext(ctx).Model(&models.Address{}).
		Where("user_id = ? AND type = ? AND is_default = ? AND id <> ?", userID, addrType, true, exceptID).
		Update("is_default", false).Error
}

func (r *Repository) MarkDefault(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.Address{}).
		Where("id = ?", id).
		Update("is_default", true).Error
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Address{}, "id = ?", id).Error
}
