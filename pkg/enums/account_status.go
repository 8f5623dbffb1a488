package enums

import "strings"

// AccountStatus is the derived state of a seller's Stripe Connect account.
type AccountStatus string

const (
	AccountStatusNone               AccountStatus = "none"
	AccountStatusMinimal            AccountStatus = "minimal"
	AccountStatusPending            AccountStatus = "pending"
	AccountStatusVerificationNeeded AccountStatus = "verification_needed"
	AccountStatusActive             AccountStatus = "active"
	AccountStatusRejected           AccountStatus = "rejected"
)

var accountStatuses = set[AccountStatus]{
	AccountStatusNone,
	AccountStatusMinimal,
	AccountStatusPending,
	AccountStatusVerificationNeeded,
	AccountStatusActive,
	AccountStatusRejected,
}

func (s AccountStatus) IsValid() bool { return accountStatuses.has(s) }

// ParseAccountStatus normalizes stored values. Blank means no account, and
// "submitted", written by the first onboarding release, means pending.
func ParseAccountStatus(value string) (AccountStatus, error) {
	switch normalized := strings.ToLower(strings.TrimSpace(value)); normalized {
	case "":
		return AccountStatusNone, nil
	case "submitted":
		return AccountStatusPending, nil
	default:
		return accountStatuses.parse("account status", normalized)
	}
}
