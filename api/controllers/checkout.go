package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/angkor-storefront/api/responses"
	"github.com/angelmondragon/angkor-storefront/api/validators"
	"github.com/angelmondragon/angkor-storefront/internal/payments"
	"github.com/angelmondragon/angkor-storefront/pkg/logger"
)

// PayWayCheckout starts a hosted checkout for one of the caller's orders.
// The response carries the fields the browser posts to the gateway.
func PayWayCheckout(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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
		session, err := svc.InitiatePayment(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// PayWayReturn syncs the transaction status and sends the shopper to the
// order confirmation page. A failed status query still redirects; the
// pushback settles the order later.
func PayWayReturn(svc payments.Service, storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	base := strings.TrimRight(storefrontURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tranID := strings.TrimSpace(r.URL.Query().Get("tran_id"))
		if tranID == "" {
			responses.Redirect(w, r, base+"/orders")
			return
		}

		result, err := svc.SyncTransaction(ctx, tranID)
		if err != nil {
			logg.Error(logg.WithTransactionID(ctx, tranID), "payway return sync failed", err)
		}
		if result == nil || result.OrderID == 0 {
			responses.Redirect(w, r, base+"/orders")
			return
		}
		responses.Redirect(w, r, fmt.Sprintf("%s/orders/%d/confirmation", base, result.OrderID))
	}
}

// PayWayCancel sends the shopper back to the cart.
func PayWayCancel(storefrontURL string, logg *logger.Logger) http.HandlerFunc {
	base := strings.TrimRight(storefrontURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		if tranID := strings.TrimSpace(r.URL.Query().Get("tran_id")); tranID != "" {
			logg.Info(logg.WithTransactionID(r.Context(), tranID), "payway checkout cancelled by shopper")
		}
		q := url.Values{"payment": []string{"cancelled"}}
		responses.Redirect(w, r, base+"/cart?"+q.Encode())
	}
}
