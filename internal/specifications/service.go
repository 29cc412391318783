// Package specifications serves typed product attributes. Values are stored
// per product or per variant; reads merge the two so a variant value wins
// over the product value for the same attribute.
package specifications

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

const maxTextLength = 255

// numeric(14,4) holds ten integer digits.
var maxNumber = decimal.New(1, 10)

var codePattern = regexp.MustCompile(`^[a-z0-9]+(?:_[a-z0-9]+)*$`)

type Service interface {
	ListAttributes(ctx context.Context) ([]AttributeDTO, error)
	CreateAttribute(ctx context.Context, input CreateAttributeInput) (*AttributeDTO, error)
	Effective(ctx context.Context, productID int64, variantID *int64) ([]SpecificationDTO, error)
	Upsert(ctx context.Context, input UpsertInput) (*SpecificationDTO, error)
	Delete(ctx context.Context, productID int64, variantID *int64, attributeID int64) error
}

type CreateAttributeInput struct {
	Name          string
	Code          string
	Unit          *string
	DataType      enums.SpecDataType
	AllowedValues []string
	IsFilterable  bool
	SortOrder     int
}

// UpsertInput sets one attribute value. A nil VariantID targets the product
// scope.
type UpsertInput struct {
	ProductID   int64
	VariantID   *int64
	AttributeID int64
	Value       string
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	logg     *logger.Logger
}

func NewService(repo *Repository, dbClient *db.Client, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("specification repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, dbClient: dbClient, logg: logg}, nil
}

func (s *service) ListAttributes(ctx context.Context) ([]AttributeDTO, error) {
	attrs, err := s.repo.ListAttributes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list specification attributes")
	}
	out := make([]AttributeDTO, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, newAttributeDTO(attr))
	}
	return out, nil
}

func (s *service) CreateAttribute(ctx context.Context, input CreateAttributeInput) (*AttributeDTO, error) {
	attr := models.SpecificationAttribute{
		Name:         strings.TrimSpace(input.Name),
		Code:         strings.ToLower(strings.TrimSpace(input.Code)),
		Unit:         input.Unit,
		DataType:     input.DataType,
		IsFilterable: input.IsFilterable,
		SortOrder:    input.SortOrder,
	}
	details := map[string]string{}
	if attr.Name == "" {
		details["name"] = "required"
	}
	if !codePattern.MatchString(attr.Code) {
		details["code"] = "must be lower snake case"
	}
	if !attr.DataType.IsValid() {
		details["data_type"] = "must be number, text or enum"
	}
	seen := map[string]struct{}{}
	for _, raw := range input.AllowedValues {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if _, dup := seen[key]; dup {
			details["allowed_values"] = "must be unique"
			continue
		}
		seen[key] = struct{}{}
		attr.AllowedValues = append(attr.AllowedValues, value)
	}
	if attr.DataType == enums.SpecDataTypeEnum && len(attr.AllowedValues) == 0 {
		details["allowed_values"] = "required for enum attributes"
	}
	if attr.DataType != enums.SpecDataTypeEnum && len(attr.AllowedValues) > 0 {
		details["allowed_values"] = "only enum attributes accept allowed values"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid specification attribute").WithDetails(details)
	}

	if err := s.repo.CreateAttribute(ctx, &attr); err != nil {
		return nil, err
	}
	dto := newAttributeDTO(attr)
	return &dto, nil
}

// Effective returns the resolved specification set for a product, or for one
// of its variants when variantID is set. Nothing is written.
func (s *service) Effective(ctx context.Context, productID int64, variantID *int64) ([]SpecificationDTO, error) {
	if err := s.checkScope(ctx, s.repo, productID, variantID); err != nil {
		return nil, err
	}

	productRows, err := s.repo.ListForProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product specifications")
	}
	var variantRows []models.Specification
	if variantID != nil {
		variantRows, err = s.repo.ListForVariant(ctx, *variantID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant specifications")
		}
	}

	merged := Merge(productRows, variantRows)
	ids := make([]int64, 0, len(merged))
	for _, row := range merged {
		ids = append(ids, row.AttributeID)
	}
	attrs, err := s.repo.AttributesByID(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load specification attributes")
	}

	out := make([]SpecificationDTO, 0, len(merged))
	for _, row := range merged {
		attr, ok := attrs[row.AttributeID]
		if !ok {
			continue
		}
		out = append(out, newSpecificationDTO(attr, row))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].AttributeID < out[j].AttributeID
	})
	return out, nil
}

// Merge keeps one row per attribute, preferring the variant row.
func Merge(productRows, variantRows []models.Specification) []models.Specification {
	byAttr := make(map[int64]models.Specification, len(productRows)+len(variantRows))
	order := make([]int64, 0, len(productRows)+len(variantRows))
	for _, rows := range [][]models.Specification{productRows, variantRows} {
		for _, row := range rows {
			if _, ok := byAttr[row.AttributeID]; !ok {
				order = append(order, row.AttributeID)
			}
			byAttr[row.AttributeID] = row
		}
	}
	out := make([]models.Specification, 0, len(order))
	for _, id := range order {
		out = append(out, byAttr[id])
	}
	return out
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*SpecificationDTO, error) {
	var (
		attr *models.SpecificationAttribute
		row  *models.Specification
	)
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.checkScope(ctx, repo, input.ProductID, input.VariantID); err != nil {
			return err
		}

		var err error
		attr, err = repo.FindAttribute(ctx, input.AttributeID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown specification attribute").
					WithDetails(map[string]string{"attribute_id": "not found"})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load specification attribute")
		}

		text, number, err := normalizeValue(*attr, input.Value)
		if err != nil {
			return err
		}

		row, err = repo.FindScoped(ctx, attr.ID, input.ProductID, input.VariantID)
		switch {
		case err == nil:
		case db.IsNotFound(err):
			row = &models.Specification{AttributeID: attr.ID}
			if input.VariantID != nil {
				row.VariantID = input.VariantID
			} else {
				productID := input.ProductID
				row.ProductID = &productID
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load specification")
		}
		row.ValueText = text
		row.ValueNumber = number
		return repo.Save(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithProductID(ctx, input.ProductID)
	s.logg.Info(s.logg.WithField(logCtx, "attribute_code", attr.Code), "specification value saved")
	dto := newSpecificationDTO(*attr, *row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, productID int64, variantID *int64, attributeID int64) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.checkScope(ctx, repo, productID, variantID); err != nil {
			return err
		}
		if err := repo.DeleteScoped(ctx, attributeID, productID, variantID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "specification not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete specification")
		}
		return nil
	})
}

func (s *service) checkScope(ctx context.Context, repo *Repository, productID int64, variantID *int64) error {
	ok, err := repo.ProductExists(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if variantID == nil {
		return nil
	}
	ok, err = repo.VariantBelongs(ctx, productID, *variantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	return nil
}

// normalizeValue checks raw against the attribute's data type and returns
// the column values to store.
func normalizeValue(attr models.SpecificationAttribute, raw string) (*string, decimal.NullDecimal, error) {
	value := strings.TrimSpace(raw)
	invalid := func(msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid specification value").
			WithDetails(map[string]string{"value": msg})
	}
	if value == "" {
		return nil, decimal.NullDecimal{}, invalid("required")
	}

	switch attr.DataType {
	case enums.SpecDataTypeNumber:
		number, err := decimal.NewFromString(value)
		if err != nil {
			return nil, decimal.NullDecimal{}, invalid("must be a number")
		}
		number = number.Round(4)
		if number.Abs().GreaterThanOrEqual(maxNumber) {
			return nil, decimal.NullDecimal{}, invalid("out of range")
		}
		return nil, decimal.NewNullDecimal(number), nil
	case enums.SpecDataTypeEnum:
		for _, allowed := range attr.AllowedValues {
			if strings.EqualFold(allowed, value) {
				canonical := allowed
				return &canonical, decimal.NullDecimal{}, nil
			}
		}
		return nil, decimal.NullDecimal{}, invalid("must be one of: " + strings.Join(attr.AllowedValues, ", "))
	case enums.SpecDataTypeText:
		if len([]rune(value)) > maxTextLength {
			return nil, decimal.NullDecimal{}, invalid(fmt.Sprintf("must be at most %d characters", maxTextLength))
		}
		return &value, decimal.NullDecimal{}, nil
	default:
		return nil, decimal.NullDecimal{}, pkgerrors.New(pkgerrors.CodeInternal, "unsupported specification data type")
	}
}
