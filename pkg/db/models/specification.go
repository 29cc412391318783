package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

// SpecificationAttribute defines a typed product property such as "Screen Size".
type SpecificationAttribute struct {
	ID            int64              `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string             `gorm:"column:name;not null"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	Unit          *string            `gorm:"column:unit"`
	DataType      enums.SpecDataType `gorm:"column:data_type;not null"`
	AllowedValues pq.StringArray     `gorm:"column:allowed_values;type:text[]"`
	IsFilterable  bool               `gorm:"column:is_filterable;not null"`
	SortOrder     int                `gorm:"column:sort_order;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (SpecificationAttribute) TableName() string { return "specification_attributes" }

// Specification is a value for one attribute, scoped to a product or to one of
// its variants. Exactly one of ProductID and VariantID is set.
type Specification struct {
	ID          int64               `gorm:"column:id;primaryKey;autoIncrement"`
	AttributeID int64               `gorm:"column:attribute_id;not null"`
	ProductID   *int64              `gorm:"column:product_id"`
	VariantID   *int64              `gorm:"column:variant_id"`
	ValueText   *string             `gorm:"column:value_text"`
	ValueNumber decimal.NullDecimal `gorm:"column:value_number;type:numeric(14,4)"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Specification) TableName() string { return "specifications" }
