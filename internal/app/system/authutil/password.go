// internal/app/system/authutil/password.go
package authutil

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72
	BcryptCost        = 12
)

var (
	ErrPasswordTooShort = errors.New("パスワードは8文字以上にしてください。")
	ErrPasswordTooLong  = errors.New("パスワードは72バイト以内にしてください。")
	ErrPasswordCommon   = errors.New("よく使われるパスワードは利用できません。")
)

var commonPasswords = map[string]bool{
	"12345678":  true,
	"123456789": true,
	"password":  true,
	"password1": true,
	"qwerty123": true,
	"11111111":  true,
	"00000000":  true,
	"iloveyou":  true,
	"letmein1":  true,
	"welcome1":  true,
	"admin123":  true,
	"sunshine":  true,
	"princess":  true,
	"football":  true,
	"baseball":  true,
	"superman":  true,
}

// PasswordRules describes the rules for the operator password form.
func PasswordRules() string {
	return "8文字以上で、よく使われるパスワード（例: \"password\"）は使えません。"
}

// ValidatePassword returns nil when password is acceptable for an operator.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}
	return nil
}

// HashPassword hashes a validated password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
