package connect

import (
	"strings"

	"github.com/benchlot/benchlot-backend/pkg/types"
)

// Requirement is one outstanding Stripe field rendered for sellers.
type Requirement struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// RequirementsView groups formatted requirements by Stripe bucket.
type RequirementsView struct {
	CurrentlyDue        []Requirement `json:"currently_due"`
	EventuallyDue       []Requirement `json:"eventually_due"`
	PastDue             []Requirement `json:"past_due"`
	PendingVerification []Requirement `json:"pending_verification"`
	DisabledReason      string        `json:"disabled_reason,omitempty"`
}

var exactLabels = map[string]string{
	"external_account":                            "Bank account",
	"business_profile.url":                        "Business website",
	"business_profile.mcc":                        "Business category",
	"business_profile.product_description":        "Product description",
	"individual.email":                            "Email",
	"individual.phone":                            "Phone number",
	"individual.first_name":                       "First name",
	"individual.last_name":                        "Last name",
	"individual.ssn_last_4":                       "Last 4 digits of SSN",
	"individual.id_number":                        "Government ID number",
	"individual.verification.document":            "Identity document",
	"individual.verification.additional_document": "Additional identity document",
}

// prefixLabels collapse multi-field groups such as dob.day/month/year into one line.
var prefixLabels = []struct {
	prefix string
	label  string
}{
	{"tos_acceptance.", "Terms of service acceptance"},
	{"individual.dob.", "Date of birth"},
	{"individual.address.", "Address"},
	{"company.address.", "Business address"},
	{"settings.payments.", "Statement descriptor"},
}

// RequirementLabel turns a Stripe requirement key into a seller-facing label.
func RequirementLabel(key string) string {
	if label, ok := exactLabels[key]; ok {
		return label
	}
	for _, candidate := range prefixLabels {
		if strings.HasPrefix(key, candidate.prefix) {
			return candidate.label
		}
	}
	return humanize(key)
}

// FormatRequirements renders each bucket, dropping duplicate labels while
// keeping the first key that produced them.
func FormatRequirements(req types.AccountRequirements) RequirementsView {
	return RequirementsView{
		CurrentlyDue:        formatBucket(req.CurrentlyDue),
		EventuallyDue:       formatBucket(req.EventuallyDue),
		PastDue:             formatBucket(req.PastDue),
		PendingVerification: formatBucket(req.PendingVerification),
		DisabledReason:      req.DisabledReason,
	}
}

func formatBucket(keys []string) []Requirement {
	out := make([]Requirement, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		label := RequirementLabel(key)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, Requirement{Key: key, Label: label})
	}
	return out
}

func humanize(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		key = key[idx+1:]
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	if len(words) == 0 {
		return ""
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
