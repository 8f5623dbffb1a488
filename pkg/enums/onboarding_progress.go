package enums

// OnboardingProgress tracks how far a seller got through Connect onboarding.
type OnboardingProgress string

const (
	OnboardingNotStarted OnboardingProgress = "not_started"
	OnboardingStarted    OnboardingProgress = "started"
	OnboardingInProgress OnboardingProgress = "in_progress"
	OnboardingCompleted  OnboardingProgress = "completed"
)

// OnboardingProgressFor maps an account status onto the coarser onboarding stage.
func OnboardingProgressFor(status AccountStatus) OnboardingProgress {
	switch status {
	case AccountStatusMinimal:
		return OnboardingStarted
	case AccountStatusPending, AccountStatusVerificationNeeded, AccountStatusRejected:
		return OnboardingInProgress
	case AccountStatusActive:
		return OnboardingCompleted
	default:
		return OnboardingNotStarted
	}
}
