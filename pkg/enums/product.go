package enums

// StockStatus is the persisted availability flag on a product.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
	StockStatusBackOrder  StockStatus = "back_order"
)

var stockStatuses = []StockStatus{StockStatusInStock, StockStatusOutOfStock, StockStatusBackOrder}

func (s StockStatus) String() string { return string(s) }

func (s StockStatus) IsValid() bool { return member(s, stockStatuses) }

// StockLevel is the computed availability shown to shoppers.
type StockLevel string

const (
	StockLevelInStock    StockLevel = "in_stock"
	StockLevelLowStock   StockLevel = "low_stock"
	StockLevelOutOfStock StockLevel = "out_of_stock"
)

func (s StockLevel) String() string {
	return string(s)
}

// VariantMode describes where a product keeps its purchasable units.
type VariantMode string

const (
	VariantModeSimple  VariantMode = "SIMPLE"
	VariantModeVariant VariantMode = "VARIANT"
	// VariantModeEmpty is never a resting state; it is always corrected back to simple.
	VariantModeEmpty VariantMode = "VARIANT_EMPTY"
)

func (m VariantMode) String() string {
	return string(m)
}
