package variants

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

// Store is the persistence the engine needs. All calls for one edit run on
// the same transaction.
type Store interface {
	ListByProduct(ctx context.Context, productID int64) ([]models.ProductVariant, error)
	Create(ctx context.Context, variant *models.ProductVariant) error
	Update(ctx context.Context, variant *models.ProductVariant) error
	Delete(ctx context.Context, ids []int64) error
}

// Repository is the GORM-backed Store.
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

func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]models.ProductVariant, error) {
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByProducts groups variants of several products, keyed by product id.
func (r *Repository) ListByProducts(ctx context.Context, productIDs []int64) (map[int64][]models.ProductVariant, error) {
	out := make(map[int64][]models.ProductVariant, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = append(out[row.ProductID], row)
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, variant *models.ProductVariant) error {
	if err := r.db.WithContext(ctx).Create(variant).Error; err != nil {
		return translateWriteError(err, variant.SKU)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, variant *models.ProductVariant) error {
	if err := r.db.WithContext(ctx).Save(variant).Error; err != nil {
		return translateWriteError(err, variant.SKU)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.ProductVariant{}).Error
}

func translateWriteError(err error, sku string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "variant sku already exists").
			WithDetails(map[string]string{"sku": sku})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist variant")
}
