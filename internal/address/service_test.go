package address

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

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), client, logg)
	require.NoError(t, err)
	return svc, conn
}

func shipping(first string) CreateInput {
	return CreateInput{
		Type:      enums.AddressTypeShipping,
		FirstName: first,
		LastName:  "Sok",
		Phone:     "012 345 678",
		Commune:   "Boeng Keng Kang Ti Muoy",
		District:  "Boeng Keng Kang",
		Province:  "phnom  penh",
	}
}

func defaults(t *testing.T, conn *gorm.DB, userID int64, addrType enums.AddressType) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, conn.Model(&models.Address{}).
		Where("user_id = ? AND type = ? AND is_default = ?", userID, addrType, true).
		Pluck("id", &ids).Error)
	return ids
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, 7, shipping("Dara"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "Phnom Penh", first.Province)
	assert.Equal(t, "012345678", first.Phone)

	second, err := svc.Create(ctx, 7, shipping("Sophea"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	billing := shipping("Dara")
	billing.Type = enums.AddressTypeBilling
	bill, err := svc.Create(ctx, 7, billing)
	require.NoError(t, err)
	assert.True(t, bill.IsDefault, "defaults are tracked per type")

	assert.Equal(t, []int64{first.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))
}

func TestCreateExplicitDefaultReplacesPrevious(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, shipping("Dara"))
	require.NoError(t, err)
	input := shipping("Sophea")
	input.IsDefault = true
	second, err := svc.Create(ctx, 7, input)
	require.NoError(t, err)

	assert.Equal(t, []int64{second.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))
}

func TestSetDefaultIsExclusive(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, shipping("A"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, 7, shipping("B"))
	require.NoError(t, err)
	other, err := svc.Create(ctx, 8, shipping("Other"))
	require.NoError(t, err)

	updated, err := svc.SetDefault(ctx, 7, b.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, []int64{b.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))

	// idempotent
	_, err = svc.SetDefault(ctx, 7, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))

	_, err = svc.SetDefault(ctx, 7, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "cannot touch another user's address")
	assert.Equal(t, []int64{other.ID}, defaults(t, conn, 8, enums.AddressTypeShipping))
}

func TestDeleteDefaultPromotesLowestID(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, 7, shipping("A"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, 7, shipping("B"))
	require.NoError(t, err)
	c, err := svc.Create(ctx, 7, shipping("C"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 7, a.ID))
	assert.Equal(t, []int64{b.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))

	require.NoError(t, svc.Delete(ctx, 7, c.ID))
	assert.Equal(t, []int64{b.ID}, defaults(t, conn, 7, enums.AddressTypeShipping))

	require.NoError(t, svc.Delete(ctx, 7, b.ID))
	assert.Empty(t, defaults(t, conn, 7, enums.AddressTypeShipping))

	err = svc.Delete(ctx, 7, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	postal := "12"
	_, err := svc.Create(ctx, 7, CreateInput{
		Type:       "home",
		Phone:      "555-0100",
		Province:   "Bangkok",
		PostalCode: &postal,
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	for _, field := range []string{"type", "first_name", "last_name", "phone", "commune", "district", "province", "postal_code"} {
		assert.Contains(t, details, field)
	}
	assert.Equal(t, "unknown province", details["province"])

	var count int64
	require.NoError(t, conn.Model(&models.Address{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListOrdersDefaultsFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, shipping("A"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, 7, shipping("B"))
	require.NoError(t, err)
	_, err = svc.SetDefault(ctx, 7, b.ID)
	require.NoError(t, err)

	list, err := svc.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestProvinces(t *testing.T) {
	assert.Len(t, Provinces, 25)
	name, ok := CanonicalProvince("SIEM REAP")
	assert.True(t, ok)
	assert.Equal(t, "Siem Reap", name)
	_, ok = CanonicalProvince("Saigon")
	assert.False(t, ok)
}
