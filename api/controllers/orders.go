package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/api/validators"
	"github.com/angelmondragon/angkor-storefront/internal/orders"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// ListOrders pages the caller's orders. Optional status and payment_status
// query parameters narrow the list.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		q, err := orderListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListOrders(r.Context(), userID, q)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func orderListQuery(r *http.Request) (orders.ListQuery, error) {
	values := r.URL.Query()
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return orders.ListQuery{}, err
	}
	q := orders.ListQuery{Page: pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(values.Get("cursor")),
	}}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		if q.Status, err = enums.ParseOrderStatus(strings.ToLower(raw)); err != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]string{"status": "unknown value"})
		}
	}
	if raw := strings.TrimSpace(values.Get("payment_status")); raw != "" {
		if q.PaymentStatus, err = enums.ParsePaymentStatus(strings.ToLower(raw)); err != nil {
			return q, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status").
				WithDetails(map[string]string{"payment_status": "unknown value"})
		}
	}
	return q, nil
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
