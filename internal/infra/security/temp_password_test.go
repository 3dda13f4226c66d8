package security

import (
	"strings"
	"testing"
	"unicode"

	"github.com/arklim/credential-authority/internal/core/domain"
)

func TestGenerateTempPassword_Length(t *testing.T) {
	for _, length := range []int{4, 8, DefaultTempPasswordLength, 32} {
		pw, err := GenerateTempPassword(length)
		if err != nil {
			t.Fatalf("generate failed for length %d: %v", length, err)
		}
		if len(pw) != length {
			t.Fatalf("expected length %d, got %d", length, len(pw))
		}
	}
}

func TestGenerateTempPassword_CoversAllClasses(t *testing.T) {
	// Repeated runs guard against a lucky draw masking a missing class.
	for i := 0; i < 50; i++ {
		pw, err := GenerateTempPassword(DefaultTempPasswordLength)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		var hasLower, hasUpper, hasDigit, hasSpecial bool
		for _, r := range pw {
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

		if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
			t.Fatalf("password %q missing a character class", pw)
		}
	}
}

func TestGenerateTempPassword_RejectsTooShort(t *testing.T) {
	for _, length := range []int{0, 1, 3, -5} {
		if _, err := GenerateTempPassword(length); err == nil {
			t.Fatalf("expected error for length %d", length)
		}
	}
}

func TestGenerateTempPassword_Varies(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		pw, err := GenerateTempPassword(DefaultTempPasswordLength)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if _, dup := seen[pw]; dup {
			t.Fatalf("duplicate temporary password generated: %q", pw)
		}
		seen[pw] = struct{}{}
	}
}

func TestGenerateTempPassword_PassesCustomerPolicy(t *testing.T) {
	engine := NewPolicyEngine(DefaultPolicyConfig())

	for i := 0; i < 20; i++ {
		pw, err := GenerateTempPassword(DefaultTempPasswordLength)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		result := engine.Evaluate(pw, domain.ClassCustomer)
		if !result.Accepted {
			t.Fatalf("generated password %q rejected by policy: %v", pw, result.Violations)
		}
	}
}
