package product

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// Repository persists product rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to tx; a nil tx keeps the current handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.first(ctx, id, false)
}

// FindByIDForUpdate loads the product and holds a row lock until the
// surrounding transaction ends.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return r.first(ctx, id, true)
}

func (r *Repository) first(ctx context.Context, id int64, lock bool) (*models.Product, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	product := new(models.Product)
	if err := q.Take(product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// Delete removes the product; variants and specifications cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type productListQuery struct {
	Pagination pagination.Params
	Cursor     *pagination.Cursor
	Query      string
	ActiveOnly bool
}

// List pages products newest first. It fetches one extra row so the caller
// can tell whether another page exists.
func (r *Repository) List(ctx context.Context, q productListQuery) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Scopes(activeOnly(q.ActiveOnly), matching(q.Query), before(q.Cursor)).
		Order("id DESC").
		Limit(q.Pagination.Fetch()).
		Find(&rows).Error
	return rows, err
}

func activeOnly(on bool) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if !on {
			return tx
		}
		return tx.Where("is_active = ?", true)
	}
}

// matching is a case-insensitive substring match on name or sku.
func matching(term string) func(*gorm.DB) *gorm.DB {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(tx *gorm.DB) *gorm.DB {
		if term == "" {
			return tx
		}
		like := "%" + term + "%"
		return tx.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
}

func before(c *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if c == nil {
			return tx
		}
		return tx.Where("id < ?", c.ID)
	}
}

func translateWriteError(err error) error {
	if !db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist product")
	}
	field := "sku"
	if strings.Contains(err.Error(), "slug") {
		field = "slug"
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, err, field+" already exists").
		WithDetails(map[string]string{field: "already exists"})
}
