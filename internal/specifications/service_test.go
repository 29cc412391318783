package specifications

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/angkor-storefront/pkg/db/dbtest"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

type fixture struct {
	svc       Service
	conn      *gorm.DB
	product   models.Product
	variant   models.ProductVariant
	screen    *AttributeDTO
	ram       *AttributeDTO
	material  *AttributeDTO
	otherProd models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), client, logg)
	require.NoError(t, err)

	f := fixture{svc: svc, conn: conn}
	f.product = models.Product{SKU: "PHONE", Name: "Phone", Slug: "phone", PriceCents: 49900, HasVariants: true, IsActive: true}
	require.NoError(t, conn.Create(&f.product).Error)
	f.otherProd = models.Product{SKU: "CASE", Name: "Case", Slug: "case", PriceCents: 900, TrackInventory: true, IsActive: true}
	require.NoError(t, conn.Create(&f.otherProd).Error)
	f.variant = models.ProductVariant{ProductID: f.product.ID, SKU: "PHONE-BLA-128", IsActive: true, IsDefault: true}
	require.NoError(t, conn.Create(&f.variant).Error)

	ctx := context.Background()
	unit := "in"
	f.screen, err = svc.CreateAttribute(ctx, CreateAttributeInput{Name: "Screen Size", Code: "screen_size", Unit: &unit, DataType: enums.SpecDataTypeNumber, SortOrder: 1})
	require.NoError(t, err)
	f.ram, err = svc.CreateAttribute(ctx, CreateAttributeInput{Name: "RAM", Code: "ram", DataType: enums.SpecDataTypeEnum, AllowedValues: []string{"8GB", "12GB"}, SortOrder: 2})
	require.NoError(t, err)
	f.material, err = svc.CreateAttribute(ctx, CreateAttributeInput{Name: "Material", Code: "material", DataType: enums.SpecDataTypeText, SortOrder: 2})
	require.NoError(t, err)
	return f
}

func TestEffectiveVariantOverridesProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.ram.ID, Value: "8GB"})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.screen.ID, Value: "6.1"})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.material.ID, Value: "Aluminium"})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, VariantID: &f.variant.ID, AttributeID: f.ram.ID, Value: "12gb"})
	require.NoError(t, err)

	productLevel, err := f.svc.Effective(ctx, f.product.ID, nil)
	require.NoError(t, err)
	require.Len(t, productLevel, 3)
	assert.Equal(t, "screen_size", productLevel[0].Code)
	assert.Equal(t, "6.1", productLevel[0].Value)
	assert.Equal(t, "Material", productLevel[1].Name)
	assert.Equal(t, "8GB", productLevel[2].Value)
	assert.Equal(t, ScopeProduct, productLevel[2].Scope)

	variantLevel, err := f.svc.Effective(ctx, f.product.ID, &f.variant.ID)
	require.NoError(t, err)
	require.Len(t, variantLevel, 3)
	assert.Equal(t, "12GB", variantLevel[2].Value)
	assert.Equal(t, ScopeVariant, variantLevel[2].Scope)

	// the product row is untouched by the override
	var stored models.Specification
	require.NoError(t, f.conn.Where("product_id = ? AND attribute_id = ?", f.product.ID, f.ram.ID).First(&stored).Error)
	require.NotNil(t, stored.ValueText)
	assert.Equal(t, "8GB", *stored.ValueText)
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.screen.ID, Value: "6.1"})
	require.NoError(t, err)
	dto, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.screen.ID, Value: " 6.70 "})
	require.NoError(t, err)
	assert.Equal(t, "6.7", dto.Value)

	var count int64
	require.NoError(t, f.conn.Model(&models.Specification{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertValidatesDataType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		attr  int64
		value string
	}{
		{"number not numeric", f.screen.ID, "six"},
		{"number out of range", f.screen.ID, "10000000000"},
		{"enum not allowed", f.ram.ID, "16GB"},
		{"text blank", f.material.ID, "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: tc.attr, Value: tc.value})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}

	_, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: 999, Value: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestScopeChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Effective(ctx, 404, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	// variant of a different product
	_, err = f.svc.Effective(ctx, f.otherProd.ID, &f.variant.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Upsert(ctx, UpsertInput{ProductID: f.otherProd.ID, VariantID: &f.variant.ID, AttributeID: f.ram.ID, Value: "8GB"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteSpecification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, AttributeID: f.ram.ID, Value: "8GB"})
	require.NoError(t, err)
	_, err = f.svc.Upsert(ctx, UpsertInput{ProductID: f.product.ID, VariantID: &f.variant.ID, AttributeID: f.ram.ID, Value: "12GB"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.product.ID, &f.variant.ID, f.ram.ID))
	specs, err := f.svc.Effective(ctx, f.product.ID, &f.variant.ID)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "8GB", specs[0].Value)
	assert.Equal(t, ScopeProduct, specs[0].Scope)

	err = f.svc.Delete(ctx, f.product.ID, &f.variant.ID, f.ram.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateAttributeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAttribute(ctx, CreateAttributeInput{Name: "Color", Code: "Not Valid", DataType: enums.SpecDataTypeEnum})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "code")
	assert.Contains(t, details, "allowed_values")

	_, err = f.svc.CreateAttribute(ctx, CreateAttributeInput{Name: "Dup", Code: "ram", DataType: enums.SpecDataTypeText})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	attrs, err := f.svc.ListAttributes(ctx)
	require.NoError(t, err)
	require.Len(t, attrs, 3)
	assert.Equal(t, []string{"8GB", "12GB"}, attrs[2].AllowedValues)
}

func TestMergePrefersVariantRows(t *testing.T) {
	text := func(v string) *string { return &v }
	merged := Merge(
		[]models.Specification{{AttributeID: 1, ValueText: text("a")}, {AttributeID: 2, ValueText: text("b")}},
		[]models.Specification{{AttributeID: 2, ValueText: text("B")}, {AttributeID: 3, ValueText: text("c")}},
	)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", *merged[0].ValueText)
	assert.Equal(t, "B", *merged[1].ValueText)
	assert.Equal(t, "c", *merged[2].ValueText)
}
