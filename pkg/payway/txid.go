package payway

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const transactionPrefix = "ORD"

var transactionIDPattern = regexp.MustCompile(`^ORD-(\d+)-`)

// FormatTransactionID builds the gateway-facing id ORD-{orderID}-{unix seconds}.
func FormatTransactionID(orderID int64, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", transactionPrefix, orderID, at.Unix())
}

// ExtractOrderID pulls the order id out of a transaction id. It reports false
// when the id cannot be attributed to an order.
func ExtractOrderID(tranID string) (int64, bool) {
	match := transactionIDPattern.FindStringSubmatch(tranID)
	if len(match) != 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
