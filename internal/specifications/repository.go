package specifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

// Repository persists specification attributes and their values.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
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

func (r *Repository) ListAttributes(ctx context.Context) ([]models.SpecificationAttribute, error) {
	var attrs []models.SpecificationAttribute
	err := r.db.WithContext(ctx).
		Order("sort_order ASC").
		Order("name ASC").
		Find(&attrs).Error
	return attrs, err
}

// AttributesByID loads the given attributes keyed by id. Unknown ids are
// simply absent from the result.
func (r *Repository) AttributesByID(ctx context.Context, ids []int64) (map[int64]models.SpecificationAttribute, error) {
	out := make(map[int64]models.SpecificationAttribute, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var attrs []models.SpecificationAttribute
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&attrs).Error; err != nil {
		return nil, err
	}
	for _, attr := range attrs {
		out[attr.ID] = attr
	}
	return out, nil
}

func (r *Repository) FindAttribute(ctx context.Context, id int64) (*models.SpecificationAttribute, error) {
	var attr models.SpecificationAttribute
	if err := r.db.WithContext(ctx).First(&attr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attr, nil
}

func (r *Repository) CreateAttribute(ctx context.Context, attr *models.SpecificationAttribute) error {
	if err := r.db.WithContext(ctx).Create(attr).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "attribute code already exists").
				WithDetails(map[string]string{"code": "already exists"})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist specification attribute")
	}
	return nil
}

// ListForProduct returns the product-scoped values only.
func (r *Repository) ListForProduct(ctx context.Context, productID int64) ([]models.Specification, error) {
	var rows []models.Specification
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id IS NULL", productID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListForVariant(ctx context.Context, variantID int64) ([]models.Specification, error) {
	var rows []models.Specification
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindScoped loads the value for one attribute in the given scope. A nil
// variantID selects the product scope.
func (r *Repository) FindScoped(ctx context.Context, attributeID, productID int64, variantID *int64) (*models.Specification, error) {
	var row models.Specification
	if err := scoped(r.db.WithContext(ctx), attributeID, productID, variantID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Save(ctx context.Context, row *models.Specification) error {
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "specification already set for this scope")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist specification")
	}
	return nil
}

// DeleteScoped removes one value and reports gorm.ErrRecordNotFound when
// nothing matched.
func (r *Repository) DeleteScoped(ctx context.Context, attributeID, productID int64, variantID *int64) error {
	res := scoped(r.db.WithContext(ctx), attributeID, productID, variantID).Delete(&models.Specification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ProductExists reports whether the product row is present.
func (r *Repository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error
	return count > 0, err
}

// VariantBelongs reports whether variantID is a variant of productID.
func (r *Repository) VariantBelongs(ctx context.Context, productID, variantID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ?", variantID, productID).
		Count(&count).Error
	return count > 0, err
}

func scoped(tx *gorm.DB, attributeID, productID int64, variantID *int64) *gorm.DB {
	tx = tx.Where("attribute_id = ?", attributeID)
	if variantID != nil {
		return tx.Where("variant_id = ?", *variantID)
	}
	return tx.Where("product_id = ? AND variant_id IS NULL", productID)
}
