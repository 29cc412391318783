package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/internal/address"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

type stubAddressService struct {
	userID  int64
	created *address.CreateInput
	deleted int64
}

func (s *stubAddressService) List(ctx context.Context, userID int64) ([]address.AddressDTO, error) {
	s.userID = userID
	return []address.AddressDTO{{ID: 1, Type: enums.AddressTypeShipping}}, nil
}

func (s *stubAddressService) Create(ctx context.Context, userID int64, input address.CreateInput) (*address.AddressDTO, error) {
	s.userID = userID
	s.created = &input
	return &address.AddressDTO{ID: 2, Type: input.Type}, nil
}

func (s *stubAddressService) SetDefault(ctx context.Context, userID, addressID int64) (*address.AddressDTO, error) {
	return &address.AddressDTO{ID: addressID}, nil
}

func (s *stubAddressService) Delete(ctx context.Context, userID, addressID int64) error {
	s.deleted = addressID
	return nil
}

func TestCreateAddress(t *testing.T) {
	svc := &stubAddressService{}
	body := `{"type":"shipping","first_name":" Dara ","last_name":"Sok","phone":"012345678","commune":"Boeung Keng Kang 1","district":"Chamkar Mon","province":"Phnom Penh","street":"  "}`
	rec := httptest.NewRecorder()
	CreateAddress(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(body), 8, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	assert.Equal(t, int64(8), svc.userID)
	assert.Equal(t, "Dara", svc.created.FirstName)
	assert.Nil(t, svc.created.Street)
	assert.Equal(t, enums.AddressTypeShipping, svc.created.Type)
}

func TestCreateAddressValidation(t *testing.T) {
	svc := &stubAddressService{}
	rec := httptest.NewRecorder()
	CreateAddress(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodPost, "/api/v1/addresses", strings.NewReader(`{"type":"home"}`), 8, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)
}

func TestAddressRoutesRequireUser(t *testing.T) {
	svc := &stubAddressService{}
	rec := httptest.NewRecorder()
	ListAddresses(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/addresses", nil, 0, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteAddress(t *testing.T) {
	svc := &stubAddressService{}
	rec := httptest.NewRecorder()
	DeleteAddress(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodDelete, "/api/v1/addresses/4", nil, 8, map[string]string{"addressId": "4"}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(4), svc.deleted)
}
