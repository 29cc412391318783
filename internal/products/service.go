package product

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/internal/inventory"
	"github.com/angelmondragon/angkor-storefront/internal/notifications"
	"github.com/angelmondragon/angkor-storefront/internal/variants"
	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox"
	"github.com/angelmondragon/angkor-storefront/pkg/outbox/payloads"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*EditResult, error)
	UpdateProduct(ctx context.Context, productID int64, input UpdateProductInput) (*EditResult, error)
	GetProduct(ctx context.Context, productID int64) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	DeleteProduct(ctx context.Context, productID int64) error
	FixConflicts(ctx context.Context, productID int64) (*EditResult, error)
	CheckAvailability(ctx context.Context, productID int64, qty int, variantID *int64) (*inventory.QuantityCheck, error)
}

// CreateProductInput holds the validated payload to create a product.
// Amounts are already in minor units.
type CreateProductInput struct {
	SKU                 string
	Name                string
	Slug                string
	Description         *string
	PriceCents          int64
	CompareAtPriceCents *int64
	CostPriceCents      *int64
	HasVariants         bool
	TrackInventory      bool
	StockQuantity       int
	StockStatus         enums.StockStatus
	LowStockThreshold   int
	IsActive            bool
	Variants            []variants.Input
}

// UpdateProductInput holds optional mutation values for a product. A nil
// Variants leaves existing variants alone.
type UpdateProductInput struct {
	SKU                 *string
	Name                *string
	Slug                *string
	Description         *string
	PriceCents          *int64
	CompareAtPriceCents *int64
	CostPriceCents      *int64
	HasVariants         *bool
	TrackInventory      *bool
	StockQuantity       *int
	StockStatus         *enums.StockStatus
	LowStockThreshold   *int
	IsActive            *bool
	Variants            *[]variants.Input
}

// ServiceParams are the collaborators a catalog service needs. All are
// required.
type ServiceParams struct {
	Products *Repository
	Variants *variants.Repository
	DB       *db.Client
	Engine   *variants.Engine
	Outbox   outbox.Emitter
	Sink     notifications.Sink
	Logger   *logger.Logger
}

type service struct {
	ServiceParams
}

func NewService(p ServiceParams) (Service, error) {
	for name, missing := range map[string]bool{
		"product repository": p.Products == nil,
		"variant repository": p.Variants == nil,
		"db client":          p.DB == nil,
		"variant engine":     p.Engine == nil,
		"outbox emitter":     p.Outbox == nil,
		"notification sink":  p.Sink == nil,
		"logger":             p.Logger == nil,
	} {
		if missing {
			return nil, fmt.Errorf("products: %s required", name)
		}
	}
	return &service{p}, nil
}

// CreateProduct inserts the product as simple, then lets the variant engine
// move it to the requested mode inside the same transaction.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*EditResult, error) {
	product := &models.Product{
		SKU:                 strings.TrimSpace(input.SKU),
		Name:                strings.TrimSpace(input.Name),
		Slug:                strings.TrimSpace(input.Slug),
		Description:         input.Description,
		PriceCents:          input.PriceCents,
		CompareAtPriceCents: input.CompareAtPriceCents,
		CostPriceCents:      input.CostPriceCents,
		TrackInventory:      input.TrackInventory,
		StockQuantity:       input.StockQuantity,
		StockStatus:         input.StockStatus,
		LowStockThreshold:   input.LowStockThreshold,
		IsActive:            input.IsActive,
	}
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}
	if product.StockStatus == "" {
		product.StockStatus = enums.StockStatusInStock
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	var result *EditResult
	err := s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.Products.WithTx(tx)
		if err := txRepo.Create(ctx, product); err != nil {
			return err
		}
		var err error
		result, err = s.applyVariants(ctx, tx, product, variants.Request{
			HasVariants: input.HasVariants,
			Variants:    input.Variants,
		})
		return err
	})
	if err != nil {
		return nil, wrapTxError(err, "create product")
	}

	s.notify(ctx, result.Notices)
	return result, nil
}

func (s *service) UpdateProduct(ctx context.Context, productID int64, input UpdateProductInput) (*EditResult, error) {
	var result *EditResult
	err := s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.Products.WithTx(tx)
		product, err := txRepo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return lookupError(err)
		}

		applyUpdateToProduct(product, input)
		if err := validateProduct(product); err != nil {
			return err
		}

		req := variants.Request{HasVariants: product.HasVariants}
		if input.HasVariants != nil {
			req.HasVariants = *input.HasVariants
		}
		if input.Variants != nil {
			req.Variants = *input.Variants
		}
		result, err = s.applyVariants(ctx, tx, product, req)
		return err
	})
	if err != nil {
		return nil, wrapTxError(err, "update product")
	}

	s.notify(ctx, result.Notices)
	return result, nil
}

// applyVariants runs the engine, persists the product row and queues a
// change event when variant rows moved.
func (s *service) applyVariants(ctx context.Context, tx *gorm.DB, product *models.Product, req variants.Request) (*EditResult, error) {
	outcome, err := s.Engine.Apply(ctx, s.Variants.WithTx(tx), product, req)
	if err != nil {
		return nil, err
	}
	if err := s.Products.WithTx(tx).Save(ctx, product); err != nil {
		return nil, err
	}

	if outcome.Transition != variants.TransitionNone || outcome.Changed() {
		event := outbox.DomainEvent{
			EventType:     enums.EventProductVariantsChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   strconv.FormatInt(product.ID, 10),
			Data: payloads.ProductVariantsChangedEvent{
				ProductID:  product.ID,
				SKU:        product.SKU,
				Mode:       string(outcome.To),
				Transition: string(outcome.Transition),
				Created:    outcome.Created,
				Updated:    outcome.Updated,
				Deleted:    outcome.Deleted,
				Fixes:      len(outcome.Fixes),
			},
		}
		if err := s.Outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue product event")
		}
	}

	return &EditResult{
		Product:    NewProductDTO(product, outcome.Variants),
		Transition: string(outcome.Transition),
		Rejected:   outcome.Rejected,
		Fixes:      outcome.Fixes,
		Notices:    outcome.Notices,
	}, nil
}

func (s *service) GetProduct(ctx context.Context, productID int64) (*ProductDTO, error) {
	product, rows, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product, rows), nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := input.Pagination.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.Products.List(ctx, productListQuery{
		Pagination: input.Pagination,
		Cursor:     cursor,
		Query:      input.Query,
		ActiveOnly: input.ActiveOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ProductListResult{Products: []ProductDTO{}}
	rows, result.NextCursor = pagination.Trim(rows, input.Pagination, func(p models.Product) int64 { return p.ID })

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	grouped, err := s.Variants.ListByProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list variants")
	}
	for i := range rows {
		result.Products = append(result.Products, *NewProductDTO(&rows[i], grouped[rows[i].ID]))
	}
	return result, nil
}

// DeleteProduct removes a product and relies on FK cascades for related rows.
func (s *service) DeleteProduct(ctx context.Context, productID int64) error {
	if err := s.Products.Delete(ctx, productID); err != nil {
		return lookupError(err)
	}
	return nil
}

// FixConflicts runs the auto-fix on demand and reports what changed.
func (s *service) FixConflicts(ctx context.Context, productID int64) (*EditResult, error) {
	var result *EditResult
	err := s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.Products.WithTx(tx)
		product, err := txRepo.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return lookupError(err)
		}

		store := s.Variants.WithTx(tx)
		fixes, notices, err := s.Engine.AutoFixConflicts(ctx, store, product)
		if err != nil {
			return err
		}
		if len(fixes) > 0 {
			if err := txRepo.Save(ctx, product); err != nil {
				return err
			}
		}
		rows, err := store.ListByProduct(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
		}
		result = &EditResult{Product: NewProductDTO(product, rows), Fixes: fixes, Notices: notices}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err, "fix product conflicts")
	}

	s.notify(ctx, result.Notices)
	return result, nil
}

func (s *service) CheckAvailability(ctx context.Context, productID int64, qty int, variantID *int64) (*inventory.QuantityCheck, error) {
	product, rows, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	check := inventory.ValidateQuantity(*product, rows, qty, variantID)
	return &check, nil
}

func (s *service) load(ctx context.Context, productID int64) (*models.Product, []models.ProductVariant, error) {
	product, err := s.Products.FindByID(ctx, productID)
	if err != nil {
		return nil, nil, lookupError(err)
	}
	rows, err := s.Variants.ListByProduct(ctx, productID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	return product, rows, nil
}

func (s *service) notify(ctx context.Context, notices []notifications.Notice) {
	for _, notice := range notices {
		s.Sink.Notify(ctx, notice)
	}
}

// lookupError maps a missing row to 404 and anything else to 503.
func lookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func wrapTxError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func validateProduct(p *models.Product) error {
	details := map[string]string{}
	check := func(field string, bad bool, msg string) {
		if bad {
			details[field] = msg
		}
	}
	check("sku", p.SKU == "", "is required")
	check("name", p.Name == "", "is required")
	check("slug", p.Slug == "", "is required")
	check("price", p.PriceCents < 0, "must not be negative")
	check("stock_quantity", p.StockQuantity < 0, "must not be negative")
	check("low_stock_threshold", p.LowStockThreshold < 0, "must not be negative")
	check("stock_status", !p.StockStatus.IsValid(), "is invalid")
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid product").WithDetails(details)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// applyUpdateToProduct copies every non-nil field of input onto product.
// Nullable money columns are replaced, not merged.
func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	setIf(&product.SKU, trimmed(input.SKU))
	setIf(&product.Name, trimmed(input.Name))
	setIf(&product.Slug, trimmed(input.Slug))
	setIf(&product.PriceCents, input.PriceCents)
	setIf(&product.TrackInventory, input.TrackInventory)
	setIf(&product.StockQuantity, input.StockQuantity)
	setIf(&product.StockStatus, input.StockStatus)
	setIf(&product.LowStockThreshold, input.LowStockThreshold)
	setIf(&product.IsActive, input.IsActive)
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.CompareAtPriceCents != nil {
		product.CompareAtPriceCents = input.CompareAtPriceCents
	}
	if input.CostPriceCents != nil {
		product.CostPriceCents = input.CostPriceCents
	}
}

var slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	return strings.Trim(slugSeparator.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
