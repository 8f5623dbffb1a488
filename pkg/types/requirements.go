package types

import (
	"database/sql/driver"
	"encoding/json"
)

// AccountRequirements snapshots the Connect requirement buckets for a seller.
type AccountRequirements struct {
	CurrentlyDue        []string `json:"currently_due"`
	EventuallyDue       []string `json:"eventually_due"`
	PastDue             []string `json:"past_due"`
	PendingVerification []string `json:"pending_verification"`
	DisabledReason      string   `json:"disabled_reason,omitempty"`
}

// HasOutstanding reports whether anything is currently or past due.
func (r AccountRequirements) HasOutstanding() bool {
	return len(r.CurrentlyDue) > 0 || len(r.PastDue) > 0
}

// Value serializes the requirements, writing empty arrays instead of null.
func (r AccountRequirements) Value() (driver.Value, error) {
	return json.Marshal(r.withEmptySlices())
}

// Scan decodes JSONB into the requirements.
func (r *AccountRequirements) Scan(value interface{}) error {
	if value == nil {
		*r = AccountRequirements{}.withEmptySlices()
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded AccountRequirements
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*r = decoded.withEmptySlices()
	return nil
}

func (r AccountRequirements) withEmptySlices() AccountRequirements {
	if r.CurrentlyDue == nil {
		r.CurrentlyDue = []string{}
	}
	if r.EventuallyDue == nil {
		r.EventuallyDue = []string{}
	}
	if r.PastDue == nil {
		r.PastDue = []string{}
	}
	if r.PendingVerification == nil {
		r.PendingVerification = []string{}
	}
	return r
}

// Normalized returns a copy with nil buckets replaced by empty lists.
func (r AccountRequirements) Normalized() AccountRequirements {
	return r.withEmptySlices()
}
