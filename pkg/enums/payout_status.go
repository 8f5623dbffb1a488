package enums

// PayoutStatus tracks a single seller transfer for an order. Failed payouts
// return to pending when the retry job claims them.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

var payoutStatuses = set[PayoutStatus]{PayoutStatusPending, PayoutStatusCompleted, PayoutStatusFailed}

func (s PayoutStatus) IsValid() bool { return payoutStatuses.has(s) }

func ParsePayoutStatus(value string) (PayoutStatus, error) {
	return payoutStatuses.parse("payout status", value)
}
