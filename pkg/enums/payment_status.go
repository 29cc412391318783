package enums

// PaymentStatus is shared by orders and gateway transactions.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return member(p, paymentStatuses) }

// IsTerminal reports whether the attempt is closed. Only pending is open.
func (p PaymentStatus) IsTerminal() bool {
	return p != PaymentStatusPending
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse(value, paymentStatuses, "payment status")
}
