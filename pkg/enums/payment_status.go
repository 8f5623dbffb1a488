package enums

// PaymentStatus mirrors the payment intent outcome on an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var paymentStatuses = set[PaymentStatus]{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed}

func (s PaymentStatus) IsValid() bool { return paymentStatuses.has(s) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
