package security

import (
	"testing"

	"github.com/arklim/credential-authority/internal/core/domain"
)

func hasViolation(result domain.PolicyResult, kind domain.ViolationKind) bool {
	for _, v := range result.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

func TestPolicyEngine_Evaluate(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	cases := []struct {
		name      string
		candidate string
		class     domain.AccountClass
		accepted  bool
		kinds     []domain.ViolationKind
	}{
		{
			name:      "customer valid",
			candidate: "Tr!ckyPass7x",
			class:     domain.ClassCustomer,
			accepted:  true,
		},
		{
			name:      "customer lowercase plus digit satisfies upper-or-digit",
			candidate: "m!xedcase77z",
			class:     domain.ClassCustomer,
			accepted:  true,
		},
		{
			name:      "customer too short",
			candidate: "Ab!7xkm",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationTooShort},
		},
		{
			name:      "admin needs twelve characters",
			candidate: "Sh0rt!pass",
			class:     domain.ClassAdmin,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationTooShort},
		},
		{
			name:      "admin valid at twelve",
			candidate: "L0ng!passkey",
			class:     domain.ClassAdmin,
			accepted:  true,
		},
		{
			name:      "missing lowercase",
			candidate: "UPPERCASE!77",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationMissingLowercase},
		},
		{
			name:      "missing upper and digit",
			candidate: "lowercase!only",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationMissingUpperOrDigit},
		},
		{
			name:      "missing special",
			candidate: "NoSpecial77x",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationMissingSpecial},
		},
		{
			name:      "banned substring case-insensitive",
			candidate: "MyPaSSworD!7",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationBannedSubstring},
		},
		{
			name:      "banned admin substring",
			candidate: "SuperAdmin!7x",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationBannedSubstring},
		},
		{
			name:      "sequential characters",
			candidate: "Qwerty!7abcx",
			class:     domain.ClassCustomer,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationSequential},
		},
		{
			name:      "constrained skips character classes",
			candidate: "zzzz",
			class:     domain.ClassConstrained,
			accepted:  true,
		},
		{
			name:      "constrained still enforces length",
			candidate: "zzz",
			class:     domain.ClassConstrained,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationTooShort},
		},
		{
			name:      "constrained still enforces banned substrings",
			candidate: "password",
			class:     domain.ClassConstrained,
			accepted:  false,
			kinds:     []domain.ViolationKind{domain.ViolationBannedSubstring},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Evaluate(tc.candidate, tc.class)
			if result.Accepted != tc.accepted {
				t.Fatalf("expected accepted=%v, got %v (violations: %v)", tc.accepted, result.Accepted, result.Violations)
			}
			for _, kind := range tc.kinds {
				if !hasViolation(result, kind) {
					t.Fatalf("expected violation %s, got %v", kind, result.Violations)
				}
			}
		})
	}
}

func TestPolicyEngine_CollectsAllViolations(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	// Short, no lowercase, no upper-or-digit is impossible together, so use
	// a candidate tripping length, lowercase, and special at once.
	result := engine.Evaluate("ABC4567", domain.ClassCustomer)
	if result.Accepted {
		t.Fatalf("expected rejection")
	}

	for _, kind := range []domain.ViolationKind{
		domain.ViolationTooShort,
		domain.ViolationMissingLowercase,
		domain.ViolationMissingSpecial,
	} {
		if !hasViolation(result, kind) {
			t.Fatalf("expected violation %s in %v", kind, result.Violations)
		}
	}
}

func TestPolicyEngine_EmptyPassword(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	result := engine.Evaluate("", domain.ClassCustomer)
	if result.Accepted {
		t.Fatalf("expected empty password to be rejected")
	}
	if !hasViolation(result, domain.ViolationTooShort) {
		t.Fatalf("expected too-short violation")
	}
	if result.Score != 0 {
		t.Fatalf("expected zero score, got %d", result.Score)
	}
	if result.Strength != domain.StrengthWeak {
		t.Fatalf("expected weak strength, got %s", result.Strength)
	}
}

func TestPolicyEngine_MissingDigitIsWarningOnly(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	result := engine.Evaluate("Upperlower!x", domain.ClassCustomer)
	if !result.Accepted {
		t.Fatalf("expected acceptance, got violations %v", result.Violations)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected a digit warning")
	}
}

func TestStrengthScoring(t *testing.T) {
	cases := []struct {
		name      string
		candidate string
		score     int
		strength  domain.Strength
	}{
		// 7 chars, lower only: no length points, one class.
		{"weak short", "zkmtpqw", 1, domain.StrengthWeak},
		// 8 chars, lower+upper: 1 + 2.
		{"weak boundary", "Zkmtpqwx", 3, domain.StrengthWeak},
		// 8 chars, three classes: 1 + 3.
		{"medium", "Zkmtpq7x", 4, domain.StrengthMedium},
		// 12 chars, four classes: 2 + 4 + 1.
		{"strong", "Zkmtpq7x!bvn", 7, domain.StrengthStrong},
		// 16 chars, four classes: 3 + 4 + 1.
		{"very strong", "Zkmtpq7x!bvnwrtd", 8, domain.StrengthVeryStrong},
	}

	engine := NewPolicyEngine(DefaultPolicyConfig())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Evaluate(tc.candidate, domain.ClassCustomer)
			if result.Score != tc.score {
				t.Fatalf("expected score %d, got %d", tc.score, result.Score)
			}
			if result.Strength != tc.strength {
				t.Fatalf("expected strength %s, got %s", tc.strength, result.Strength)
			}
		})
	}
}

func TestPolicyEngine_MinLength(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	if got := engine.MinLength(domain.ClassAdmin); got != 12 {
		t.Fatalf("expected admin minimum 12, got %d", got)
	}
	if got := engine.MinLength(domain.ClassCustomer); got != 8 {
		t.Fatalf("expected customer minimum 8, got %d", got)
	}
	if got := engine.MinLength(domain.ClassConstrained); got != 4 {
		t.Fatalf("expected constrained minimum 4, got %d", got)
	}
}
