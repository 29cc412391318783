package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/api/validators"
	productsvc "github.com/angelmondragon/angkor-storefront/internal/products"
	"github.com/angelmondragon/angkor-storefront/internal/variants"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/money"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

type variantOptionRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Value string `json:"value" validate:"required,max=128"`
}

type variantRequest struct {
	SKU           string                 `json:"sku" validate:"required,max=100"`
	Options       []variantOptionRequest `json:"options" validate:"dive"`
	OverridePrice *string                `json:"override_price"`
	StockQuantity int                    `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool                  `json:"is_active"`
	IsDefault     bool                   `json:"is_default"`
}

type createProductRequest struct {
	SKU               string           `json:"sku" validate:"required,max=100"`
	Name              string           `json:"name" validate:"required,max=255"`
	Slug              string           `json:"slug" validate:"omitempty,max=255"`
	Description       *string          `json:"description"`
	Price             string           `json:"price" validate:"required"`
	CompareAtPrice    *string          `json:"compare_at_price"`
	CostPrice         *string          `json:"cost_price"`
	HasVariants       bool             `json:"has_variants"`
	TrackInventory    *bool            `json:"track_inventory"`
	StockQuantity     int              `json:"stock_quantity" validate:"gte=0"`
	StockStatus       string           `json:"stock_status" validate:"omitempty,oneof=in_stock out_of_stock back_order"`
	LowStockThreshold int              `json:"low_stock_threshold" validate:"gte=0"`
	IsActive          *bool            `json:"is_active"`
	Variants          []variantRequest `json:"variants" validate:"dive"`
}

type updateProductRequest struct {
	SKU               *string           `json:"sku" validate:"omitempty,max=100"`
	Name              *string           `json:"name" validate:"omitempty,max=255"`
	Slug              *string           `json:"slug" validate:"omitempty,max=255"`
	Description       *string           `json:"description"`
	Price             *string           `json:"price"`
	CompareAtPrice    *string           `json:"compare_at_price"`
	CostPrice         *string           `json:"cost_price"`
	HasVariants       *bool             `json:"has_variants"`
	TrackInventory    *bool             `json:"track_inventory"`
	StockQuantity     *int              `json:"stock_quantity" validate:"omitempty,gte=0"`
	StockStatus       *string           `json:"stock_status" validate:"omitempty,oneof=in_stock out_of_stock back_order"`
	LowStockThreshold *int              `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	IsActive          *bool             `json:"is_active"`
	Variants          *[]variantRequest `json:"variants" validate:"omitempty,dive"`
}

type availabilityRequest struct {
	Quantity  int    `json:"quantity" validate:"gte=1"`
	VariantID *int64 `json:"variant_id" validate:"omitempty,gt=0"`
}

// ListProducts serves the public catalog. Admins reuse it with active=false.
func ListProducts(svc productsvc.Service, activeOnly bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), 100),
			ActiveOnly: activeOnly,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func GetProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CheckAvailability answers whether the requested quantity can be bought.
// An invalid quantity is a normal 200 answer with valid=false.
func CheckAvailability(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body availabilityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		check, err := svc.CheckAvailability(r.Context(), productID, body.Quantity, body.VariantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, check)
	}
}

func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeEditResult(w, http.StatusCreated, result)
	}
}

func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.UpdateProduct(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeEditResult(w, http.StatusOK, result)
	}
}

func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminFixConflicts runs the variant autofix on demand.
func AdminFixConflicts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.FixConflicts(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeEditResult(w, http.StatusOK, result)
	}
}

// A rejected edit still carries the unchanged product and the notices that
// explain the rejection.
func writeEditResult(w http.ResponseWriter, status int, result *productsvc.EditResult) {
	if result != nil && result.Rejected {
		status = http.StatusUnprocessableEntity
	}
	responses.WriteSuccessStatus(w, status, result)
}

func (b createProductRequest) toInput() (productsvc.CreateProductInput, error) {
	price, err := parsePrice("price", b.Price)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	compareAt, err := parseOptionalPrice("compare_at_price", b.CompareAtPrice)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	cost, err := parseOptionalPrice("cost_price", b.CostPrice)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	vars, err := toVariantInputs(b.Variants)
	if err != nil {
		return productsvc.CreateProductInput{}, err
	}
	return productsvc.CreateProductInput{
		SKU:                 validators.SanitizeString(b.SKU, 100),
		Name:                validators.SanitizeString(b.Name, 255),
		Slug:                validators.SanitizeString(b.Slug, 255),
		Description:         validators.SanitizeOptional(b.Description, 5000),
		PriceCents:          price,
		CompareAtPriceCents: compareAt,
		CostPriceCents:      cost,
		HasVariants:         b.HasVariants,
		TrackInventory:      boolOr(b.TrackInventory, true),
		StockQuantity:       b.StockQuantity,
		StockStatus:         enums.StockStatus(b.StockStatus),
		LowStockThreshold:   b.LowStockThreshold,
		IsActive:            boolOr(b.IsActive, true),
		Variants:            vars,
	}, nil
}

func (b updateProductRequest) toInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		SKU:               b.SKU,
		Name:              b.Name,
		Slug:              b.Slug,
		Description:       b.Description,
		HasVariants:       b.HasVariants,
		TrackInventory:    b.TrackInventory,
		StockQuantity:     b.StockQuantity,
		LowStockThreshold: b.LowStockThreshold,
		IsActive:          b.IsActive,
	}
	if b.Price != nil {
		price, err := parsePrice("price", *b.Price)
		if err != nil {
			return input, err
		}
		input.PriceCents = &price
	}
	var err error
	if input.CompareAtPriceCents, err = parseOptionalPrice("compare_at_price", b.CompareAtPrice); err != nil {
		return input, err
	}
	if input.CostPriceCents, err = parseOptionalPrice("cost_price", b.CostPrice); err != nil {
		return input, err
	}
	if b.StockStatus != nil {
		status := enums.StockStatus(*b.StockStatus)
		input.StockStatus = &status
	}
	if b.Variants != nil {
		vars, err := toVariantInputs(*b.Variants)
		if err != nil {
			return input, err
		}
		input.Variants = &vars
	}
	return input, nil
}

func toVariantInputs(in []variantRequest) ([]variants.Input, error) {
	out := make([]variants.Input, 0, len(in))
	for i, v := range in {
		override, err := parseOptionalPrice("variants["+strconv.Itoa(i)+"].override_price", v.OverridePrice)
		if err != nil {
			return nil, err
		}
		options := make([]models.VariantOption, 0, len(v.Options))
		for _, opt := range v.Options {
			options = append(options, models.VariantOption{
				Name:  validators.SanitizeString(opt.Name, 64),
				Value: validators.SanitizeString(opt.Value, 128),
			})
		}
		out = append(out, variants.Input{
			SKU:                validators.SanitizeString(v.SKU, 100),
			Options:            options,
			OverridePriceCents: override,
			StockQuantity:      v.StockQuantity,
			IsActive:           boolOr(v.IsActive, true),
			IsDefault:          v.IsDefault,
		})
	}
	return out, nil
}

func parsePrice(field, value string) (int64, error) {
	cents, err := money.ParseMinorUnits(value)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").WithDetails(map[string]string{field: "must be a decimal amount"})
	}
	if cents < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount").WithDetails(map[string]string{field: "must not be negative"})
	}
	return cents, nil
}

func parseOptionalPrice(field string, value *string) (*int64, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	cents, err := parsePrice(field, *value)
	if err != nil {
		return nil, err
	}
	return &cents, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
