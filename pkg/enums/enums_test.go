package enums

import "testing"

func TestParseAccountStatusLegacySubmitted(t *testing.T) {
	got, err := ParseAccountStatus("submitted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != AccountStatusPending {
		t.Fatalf("expected submitted to map to pending, got %s", got)
	}
}

func TestParseAccountStatusEmptyIsNone(t *testing.T) {
	got, err := ParseAccountStatus("  ")
	if err != nil || got != AccountStatusNone {
		t.Fatalf("expected none, got %s err=%v", got, err)
	}
	if _, err := ParseAccountStatus("bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestOnboardingProgressFor(t *testing.T) {
	cases := map[AccountStatus]OnboardingProgress{
		AccountStatusNone:               OnboardingNotStarted,
		AccountStatusMinimal:            OnboardingStarted,
		AccountStatusPending:            OnboardingInProgress,
		AccountStatusVerificationNeeded: OnboardingInProgress,
		AccountStatusActive:             OnboardingCompleted,
	}
	for status, want := range cases {
		if got := OnboardingProgressFor(status); got != want {
			t.Fatalf("status %s: expected %s got %s", status, want, got)
		}
	}
}

func TestOrderAndPayoutParse(t *testing.T) {
	if _, err := ParseOrderStatus("payment_failed"); err != nil {
		t.Fatalf("payment_failed should parse: %v", err)
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatal("expected unknown order status to fail")
	}
	if _, err := ParsePayoutStatus("completed"); err != nil {
		t.Fatalf("completed should parse: %v", err)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("expected settled to be rejected")
	}
}

func TestOutboxEventTypes(t *testing.T) {
	if !EventOrderPaid.IsValid() {
		t.Fatal("order_paid should be valid")
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected vendor_order to be rejected")
	}
}

func TestPayoutStatusValidity(t *testing.T) {
	if !PayoutStatusFailed.IsValid() {
		t.Fatal("failed should be valid")
	}
	if PayoutStatus("reversed").IsValid() {
		t.Fatal("unknown payout status should be invalid")
	}
}
