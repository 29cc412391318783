package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

func simpleProduct(stock int) models.Product {
	return models.Product{
		ID:                1,
		TrackInventory:    true,
		StockQuantity:     stock,
		StockStatus:       enums.StockStatusInStock,
		LowStockThreshold: 5,
		IsActive:          true,
	}
}

func variantProduct() models.Product {
	return models.Product{ID: 2, HasVariants: true, LowStockThreshold: 3, IsActive: true, StockStatus: enums.StockStatusInStock}
}

func variant(id int64, stock int, active bool) models.ProductVariant {
	return models.ProductVariant{ID: id, ProductID: 2, StockQuantity: stock, IsActive: active}
}

func TestSimpleProductStatus(t *testing.T) {
	assert.Equal(t, enums.StockLevelInStock, StockStatus(simpleProduct(20), nil))
	assert.Equal(t, enums.StockLevelLowStock, StockStatus(simpleProduct(5), nil))
	assert.Equal(t, enums.StockLevelOutOfStock, StockStatus(simpleProduct(0), nil))
	assert.Equal(t, 20, TotalStock(simpleProduct(20), nil))

	untracked := simpleProduct(0)
	untracked.TrackInventory = false
	assert.Equal(t, enums.StockLevelInStock, StockStatus(untracked, nil))

	flagged := simpleProduct(50)
	flagged.StockStatus = enums.StockStatusOutOfStock
	assert.Equal(t, enums.StockLevelOutOfStock, StockStatus(flagged, nil))

	backorder := simpleProduct(0)
	backorder.StockStatus = enums.StockStatusBackOrder
	assert.Equal(t, enums.StockLevelInStock, StockStatus(backorder, nil))
}

func TestVariantRollup(t *testing.T) {
	p := variantProduct()

	assert.Equal(t, enums.StockLevelOutOfStock, StockStatus(p, nil))
	assert.Equal(t, enums.StockLevelOutOfStock, StockStatus(p, []models.ProductVariant{variant(1, 0, true), variant(2, 0, true), variant(3, 40, false)}))
	assert.Equal(t, enums.StockLevelLowStock, StockStatus(p, []models.ProductVariant{variant(1, 0, true), variant(2, 20, true)}))
	assert.Equal(t, enums.StockLevelLowStock, StockStatus(p, []models.ProductVariant{variant(1, 3, true), variant(2, 20, true)}))
	assert.Equal(t, enums.StockLevelInStock, StockStatus(p, []models.ProductVariant{variant(1, 4, true), variant(2, 20, true)}))

	assert.Equal(t, 24, TotalStock(p, []models.ProductVariant{variant(1, 4, true), variant(2, 20, true), variant(3, 100, false)}))
}

func TestValidateQuantityVariantProductNeedsVariant(t *testing.T) {
	p := variantProduct()
	variants := []models.ProductVariant{variant(1, 4, true), variant(2, 0, true), variant(3, 9, false)}

	check := ValidateQuantity(p, variants, 1, nil)
	assert.False(t, check.Valid)
	assert.Contains(t, check.Message, "per variant")

	id := int64(1)
	assert.True(t, ValidateQuantity(p, variants, 4, &id).Valid)

	tooMany := ValidateQuantity(p, variants, 5, &id)
	assert.False(t, tooMany.Valid)
	assert.Equal(t, 4, tooMany.Available)
	assert.Contains(t, tooMany.Message, "Only 4")

	soldOut := int64(2)
	assert.False(t, ValidateQuantity(p, variants, 1, &soldOut).Valid)

	inactive := int64(3)
	assert.False(t, ValidateQuantity(p, variants, 1, &inactive).Valid)

	missing := int64(99)
	assert.False(t, ValidateQuantity(p, variants, 1, &missing).Valid)
}

func TestValidateQuantitySimpleProduct(t *testing.T) {
	p := simpleProduct(3)
	assert.True(t, ValidateQuantity(p, nil, 3, nil).Valid)
	assert.False(t, ValidateQuantity(p, nil, 4, nil).Valid)
	assert.False(t, ValidateQuantity(p, nil, 0, nil).Valid)

	untracked := simpleProduct(0)
	untracked.TrackInventory = false
	assert.True(t, ValidateQuantity(untracked, nil, 10, nil).Valid)

	inactive := simpleProduct(10)
	inactive.IsActive = false
	assert.False(t, ValidateQuantity(inactive, nil, 1, nil).Valid)
}
