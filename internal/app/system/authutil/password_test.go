package authutil

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "kaiin-2024!", nil},
		{"exactly min", "abcd1234", nil},
		{"multibyte counts runes", "あいうえおかきく", nil},
		{"too short", "abc123", ErrPasswordTooShort},
		{"empty", "", ErrPasswordTooShort},
		{"too long", strings.Repeat("a", MaxPasswordLength+1), ErrPasswordTooLong},
		{"common", "password", ErrPasswordCommon},
		{"common any case", "PassWord1", ErrPasswordCommon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePassword(tt.password); got != tt.want {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("kaiin-2024!")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "kaiin-2024!" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("HashPassword() = %q, want a bcrypt hash", hash)
	}
	if !CheckPassword("kaiin-2024!", hash) {
		t.Error("CheckPassword() = false for the right password")
	}
	if CheckPassword("kaiin-2025!", hash) {
		t.Error("CheckPassword() = true for the wrong password")
	}
	if CheckPassword("", "") {
		t.Error("CheckPassword() = true for empty inputs")
	}
}

func TestPasswordRules(t *testing.T) {
	if !strings.Contains(PasswordRules(), "8") {
		t.Errorf("PasswordRules() = %q, want the minimum length mentioned", PasswordRules())
	}
}
