package specifications

import (
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// Scope says where an effective value came from.
type Scope string

const (
	ScopeProduct Scope = "product"
	ScopeVariant Scope = "variant"
)

type AttributeDTO struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	Code          string             `json:"code"`
	Unit          *string            `json:"unit,omitempty"`
	DataType      enums.SpecDataType `json:"data_type"`
	AllowedValues []string           `json:"allowed_values,omitempty"`
	IsFilterable  bool               `json:"is_filterable"`
	SortOrder     int                `json:"sort_order"`
}

// SpecificationDTO is one resolved value with its attribute metadata.
type SpecificationDTO struct {
	AttributeID int64              `json:"attribute_id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Unit        *string            `json:"unit,omitempty"`
	DataType    enums.SpecDataType `json:"data_type"`
	Value       string             `json:"value"`
	Scope       Scope              `json:"scope"`
	SortOrder   int                `json:"sort_order"`
}

func newAttributeDTO(attr models.SpecificationAttribute) AttributeDTO {
	return AttributeDTO{
		ID:            attr.ID,
		Name:          attr.Name,
		Code:          attr.Code,
		Unit:          attr.Unit,
		DataType:      attr.DataType,
		AllowedValues: []string(attr.AllowedValues),
		IsFilterable:  attr.IsFilterable,
		SortOrder:     attr.SortOrder,
	}
}

func newSpecificationDTO(attr models.SpecificationAttribute, row models.Specification) SpecificationDTO {
	scope := ScopeProduct
	if row.VariantID != nil {
		scope = ScopeVariant
	}
	return SpecificationDTO{
		AttributeID: attr.ID,
		Code:        attr.Code,
		Name:        attr.Name,
		Unit:        attr.Unit,
		DataType:    attr.DataType,
		Value:       displayValue(row),
		Scope:       scope,
		SortOrder:   attr.SortOrder,
	}
}

func displayValue(row models.Specification) string {
	if row.ValueNumber.Valid {
		return row.ValueNumber.Decimal.String()
	}
	if row.ValueText != nil {
		return *row.ValueText
	}
	return ""
}
