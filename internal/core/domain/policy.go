package domain

// AccountClass selects the password policy tier applied to a candidate.
type AccountClass string

const (
	// ClassAdmin applies the strictest minimum length.
	ClassAdmin AccountClass = "admin"
	// ClassCustomer applies the standard rule set.
	ClassCustomer AccountClass = "customer"
	// ClassConstrained applies a reduced minimum and skips character-class
	// rules; used for low-privilege principals such as kiosk PINs.
	ClassConstrained AccountClass = "constrained"
)

// Valid reports whether the class names a defined policy tier.
func (c AccountClass) Valid() bool {
	switch c {
	case ClassAdmin, ClassCustomer, ClassConstrained:
		return true
	}
	return false
}

// ClassForRole maps an account role onto its policy tier.
func ClassForRole(role Role) AccountClass {
	if role == RoleAdmin {
		return ClassAdmin
	}
	return ClassCustomer
}

// ViolationKind enumerates hard password-policy violations.
type ViolationKind string

const (
	ViolationTooShort            ViolationKind = "too_short"
	ViolationMissingLowercase    ViolationKind = "missing_lowercase"
	ViolationMissingUpperOrDigit ViolationKind = "missing_upper_or_digit"
	ViolationMissingSpecial      ViolationKind = "missing_special"
	ViolationBannedSubstring     ViolationKind = "banned_substring"
	ViolationSequential          ViolationKind = "sequential_characters"
)

// Violation pairs a machine-readable kind with a display message. Message
// wording is presentation detail; callers match on Kind.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// Strength is the banded score reported alongside policy evaluation.
type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// PolicyResult is the transient outcome of evaluating a candidate password.
// All rules run; Violations carries every hard failure in rule order.
type PolicyResult struct {
	Accepted   bool        `json:"accepted"`
	Violations []Violation `json:"violations,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Score      int         `json:"score"`
	Strength   Strength    `json:"strength"`
}
