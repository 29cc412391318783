package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
)

type stubOrderService struct {
	userID int64
	query  orders.ListQuery
}

func (s *stubOrderService) GetOrder(ctx context.Context, userID, orderID int64) (*orders.OrderDTO, error) {
	s.userID = userID
	return &orders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID int64, q orders.ListQuery) (*orders.OrderList, error) {
	s.userID, s.query = userID, q
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func TestListOrdersParsesFilters(t *testing.T) {
	svc := &stubOrderService{}
	rec := httptest.NewRecorder()
	req := newRequest(http.MethodGet, "/api/v1/orders?limit=5&payment_status=PAID&status=processing", nil, 4, nil)
	ListOrders(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(4), svc.userID)
	assert.Equal(t, 5, svc.query.Page.Limit)
	assert.Equal(t, enums.PaymentStatusPaid, svc.query.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, svc.query.Status)
}

func TestListOrdersRejectsUnknownFilter(t *testing.T) {
	svc := &stubOrderService{}
	rec := httptest.NewRecorder()
	ListOrders(svc, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/orders?payment_status=refunded", nil, 4, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_status")
	assert.Zero(t, svc.userID)
}

func TestListOrdersRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	ListOrders(&stubOrderService{}, testLogger()).ServeHTTP(rec, newRequest(http.MethodGet, "/api/v1/orders", nil, 0, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
