package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidator(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		code     string
	}{
		{name: "too short", password: "ab1", code: "min_length"},
		{name: "no digit", password: "longenoughpassword", code: "digit"},
		{name: "common pattern", password: "password1", code: "weak_password"},
		{name: "acceptable", password: "correct horse 42 staple", code: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("Validate(%q) = %v, want nil", tc.password, err)
				}
				return
			}

			var validationErr *PasswordValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Validate(%q) = %v, want *PasswordValidationError", tc.password, err)
			}
			if validationErr.Code != tc.code {
				t.Fatalf("code = %q, want %q", validationErr.Code, tc.code)
			}
		})
	}
}

func TestStrengthRulePenalizesUserInputs(t *testing.T) {
	rule := RequirePasswordStrengthRule(3, "alice@example.com", "alice")

	if err := rule.Validate("alice2024!"); err == nil {
		t.Fatal("password built from user inputs accepted")
	}
}
