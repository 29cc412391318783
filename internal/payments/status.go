// Package payments maps PayWay outcomes onto orders: it starts hosted
// checkouts, reconciles pushbacks and return redirects, and records every
// gateway attempt as a payment transaction.
package payments

import (
	"strings"

	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	"github.com/angelmondragon/angkor-storefront/pkg/payway"
)

var gatewayStatuses = map[string]enums.PaymentStatus{
	payway.StatusCodeApproved:  enums.PaymentStatusPaid,
	payway.StatusCodePending:   enums.PaymentStatusPending,
	payway.StatusCodeDeclined:  enums.PaymentStatusFailed,
	payway.StatusCodeCancelled: enums.PaymentStatusCancelled,
}

// MapGatewayStatus translates a gateway status code. Unknown codes map to
// pending so an order is never closed on a code we do not understand.
func MapGatewayStatus(code string) enums.PaymentStatus {
	status, _ := lookupStatus(code)
	return status
}

// IsKnownStatusCode reports whether code is part of the gateway vocabulary.
func IsKnownStatusCode(code string) bool {
	_, ok := lookupStatus(code)
	return ok
}

func lookupStatus(code string) (enums.PaymentStatus, bool) {
	status, ok := gatewayStatuses[strings.TrimSpace(code)]
	if !ok {
		return enums.PaymentStatusPending, false
	}
	return status, true
}
