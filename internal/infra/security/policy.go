package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/credential-authority/internal/core/domain"
)

const specialCharacters = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// guessabilityWarningScore is the zxcvbn score below which an advisory
// warning is attached. Never a hard violation.
const guessabilityWarningScore = 3

var bannedSubstrings = []string{"password", "admin"}

var sequentialSubstrings = []string{
	"123456",
	"234567",
	"345678",
	"456789",
	"abcdef",
	"qwerty",
	"asdfgh",
	"zxcvbn",
	"111111",
	"000000",
}

// PolicyConfig carries the per-class minimum lengths.
type PolicyConfig struct {
	AdminMinLength       int
	CustomerMinLength    int
	ConstrainedMinLength int
}

// DefaultPolicyConfig returns the built-in policy tiers.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		AdminMinLength:       12,
		CustomerMinLength:    8,
		ConstrainedMinLength: 4,
	}
}

// PolicyEngine evaluates candidate passwords against the rule set for an
// account class. Rules run top to bottom and every hard violation is
// collected; the result is accepted iff no hard violation fired.
type PolicyEngine struct {
	cfg PolicyConfig
}

// NewPolicyEngine builds an engine, filling unset minimums from defaults.
func NewPolicyEngine(cfg PolicyConfig) *PolicyEngine {
	defaults := DefaultPolicyConfig()
	if cfg.AdminMinLength <= 0 {
		cfg.AdminMinLength = defaults.AdminMinLength
	}
	if cfg.CustomerMinLength <= 0 {
		cfg.CustomerMinLength = defaults.CustomerMinLength
	}
	if cfg.ConstrainedMinLength <= 0 {
		cfg.ConstrainedMinLength = defaults.ConstrainedMinLength
	}
	return &PolicyEngine{cfg: cfg}
}

// MinLength returns the minimum length applied to the given class.
func (e *PolicyEngine) MinLength(class domain.AccountClass) int {
	switch class {
	case domain.ClassAdmin:
		return e.cfg.AdminMinLength
	case domain.ClassConstrained:
		return e.cfg.ConstrainedMinLength
	default:
		return e.cfg.CustomerMinLength
	}
}

// Evaluate runs every policy rule against the candidate. The constrained
// class uses its reduced minimum and skips all character-class rules; the
// banned-substring rules apply to every class.
func (e *PolicyEngine) Evaluate(candidate string, class domain.AccountClass) domain.PolicyResult {
	var result domain.PolicyResult

	runes := []rune(candidate)
	minLength := e.MinLength(class)
	if len(runes) < minLength {
		result.Violations = append(result.Violations, domain.Violation{
			Kind:    domain.ViolationTooShort,
			Message: fmt.Sprintf("password must be at least %d characters long", minLength),
		})
	}

	var (
		hasLower   bool
		hasUpper   bool
		hasDigit   bool
		hasSpecial bool
	)
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(specialCharacters, r) {
			hasSpecial = true
		}
	}

	if class != domain.ClassConstrained {
		if !hasLower {
			result.Violations = append(result.Violations, domain.Violation{
				Kind:    domain.ViolationMissingLowercase,
				Message: "password must include a lowercase letter",
			})
		}
		if !hasUpper && !hasDigit {
			result.Violations = append(result.Violations, domain.Violation{
				Kind:    domain.ViolationMissingUpperOrDigit,
				Message: "password must include an uppercase letter or a digit",
			})
		}
		if !hasDigit {
			result.Warnings = append(result.Warnings, "password should include a digit")
		}
		if !hasSpecial {
			result.Violations = append(result.Violations, domain.Violation{
				Kind:    domain.ViolationMissingSpecial,
				Message: "password must include a special character",
			})
		}
	}

	lowered := strings.ToLower(candidate)
	for _, banned := range bannedSubstrings {
		if strings.Contains(lowered, banned) {
			result.Violations = append(result.Violations, domain.Violation{
				Kind:    domain.ViolationBannedSubstring,
				Message: fmt.Sprintf("password must not contain %q", banned),
			})
		}
	}

	for _, seq := range sequentialSubstrings {
		if strings.Contains(lowered, seq) {
			result.Violations = append(result.Violations, domain.Violation{
				Kind:    domain.ViolationSequential,
				Message: "password must not contain trivial character sequences",
			})
			break
		}
	}

	result.Score = strengthScore(len(runes), hasLower, hasUpper, hasDigit, hasSpecial)
	result.Strength = strengthBand(result.Score)
	result.Accepted = len(result.Violations) == 0

	if candidate != "" {
		if guess := zxcvbn.PasswordStrength(candidate, nil); guess.Score < guessabilityWarningScore {
			result.Warnings = append(result.Warnings, "password is easy to guess; consider a longer passphrase")
		}
	}

	return result
}

// strengthScore is an additive heuristic: length tiers, one point per
// character class present, and a bonus for covering all four classes.
func strengthScore(length int, hasLower, hasUpper, hasDigit, hasSpecial bool) int {
	score := 0
	switch {
	case length >= 16:
		score += 3
	case length >= 12:
		score += 2
	case length >= 8:
		score += 1
	}

	classes := 0
	for _, present := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if present {
			classes++
		}
	}
	score += classes
	if classes == 4 {
		score++
	}

	return score
}

func strengthBand(score int) domain.Strength {
	switch {
	case score <= 3:
		return domain.StrengthWeak
	case score <= 5:
		return domain.StrengthMedium
	case score <= 7:
		return domain.StrengthStrong
	default:
		return domain.StrengthVeryStrong
	}
}
