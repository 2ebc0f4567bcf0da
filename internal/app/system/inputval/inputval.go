// Package inputval validates form input using waffle/pantry/validate.
//
// Define an input struct with validate tags, populate it from form values,
// and call Validate to get messages ready for display:
//
//	in := inputval.MemberInput{Name: r.FormValue("name"), ...}
//	if res := inputval.ValidateMember(in, nil); res.HasErrors() {
//	    data.SetFieldErrors(res.ByField())
//	}
package inputval

import (
	"net/mail"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dalemusser/stratamembers/internal/app/system/normalize"
	"github.com/dalemusser/stratamembers/internal/app/system/prefectures"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/validate"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result holds validation results with display messages.
type Result struct {
	Errors []FieldError
}

// FieldError represents a validation error for a single field.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (r *Result) First() string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Message
	}
	return ""
}

// ByField maps field names to their first message.
func (r *Result) ByField() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

func (r *Result) add(field, label, msg string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Label: label, Message: msg})
}

var (
	customValidator *validate.Validator
	validatorOnce   sync.Once
)

func stringRule(fn func(string) bool) func(any) bool {
	return func(value any) bool {
		s, ok := value.(string)
		return ok && fn(s)
	}
}

func getValidator() *validate.Validator {
	validatorOnce.Do(func() {
		customValidator = validate.New(validate.WithStopOnFirstError())

		// Custom rules accept the empty string; combine with required.
		customValidator.RegisterRuleFunc("optemail", stringRule(func(s string) bool {
			return strings.TrimSpace(s) == "" || IsValidEmail(s)
		}), "optemail")
		customValidator.RegisterRuleFunc("postalcode", stringRule(IsValidPostalCode), "postalcode")
		customValidator.RegisterRuleFunc("prefecture", stringRule(func(s string) bool {
			return s == "" || prefectures.IsValid(s)
		}), "prefecture")
		customValidator.RegisterRuleFunc("phone", stringRule(IsValidPhone), "phone")
		customValidator.RegisterRuleFunc("objectid", stringRule(IsValidObjectID), "objectid")
		customValidator.RegisterRuleFunc("role", stringRule(models.IsValidRole), "role")
	})
	return customValidator
}

// Validate validates a struct and returns a Result with display messages.
// Fields are named by their json tag and labelled by their label tag.
//
// Rules from pantry/validate: required, min=N, max=N, oneof.
// Rules registered here: optemail, postalcode, prefecture, phone, objectid, role.
func Validate(s any) *Result {
	result := &Result{}

	err := getValidator().Struct(s)
	if err == nil {
		return result
	}

	labels := getFieldLabels(s)
	if errs, ok := err.(validate.Errors); ok {
		for _, e := range errs {
			label := labels[e.Field]
			if label == "" {
				label = e.Field
			}
			result.add(e.Field, label, formatMessage(label, e.Rule, e.Param))
		}
	}
	return result
}

func getFieldLabels(s any) map[string]string {
	labels := make(map[string]string)

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return labels
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			if first, _, _ := strings.Cut(jsonTag, ","); first != "" && first != "-" {
				name = first
			}
		}
		if label := field.Tag.Get("label"); label != "" {
			labels[name] = label
		}
	}
	return labels
}

func formatMessage(label, rule, param string) string {
	switch rule {
	case "required":
		return label + "を入力してください。"
	case "optemail":
		return "メールアドレスの形式が正しくありません。"
	case "postalcode":
		return "郵便番号は7桁の数字で入力してください。"
	case "prefecture":
		return "都道府県を一覧から選択してください。"
	case "phone":
		return "電話番号は数字とハイフンで入力してください。"
	case "objectid":
		return label + "が正しくありません。"
	case "role":
		return "権限を一覧から選択してください。"
	case "min":
		return label + "は" + param + "文字以上で入力してください。"
	case "max":
		return label + "は" + param + "文字以内で入力してください。"
	case "oneof":
		return label + "は次のいずれかを選択してください: " + strings.ReplaceAll(param, " ", "、")
	default:
		return label + "が正しくありません。"
	}
}

// MemberInput is the member create/edit form.
type MemberInput struct {
	Number        string `json:"number" validate:"max=20" label:"会員番号"`
	Name          string `json:"name" validate:"required,max=100" label:"氏名"`
	Furigana      string `json:"furigana" validate:"max=100" label:"フリガナ"`
	Phone         string `json:"phone" validate:"phone" label:"電話番号"`
	Email         string `json:"email" validate:"optemail" label:"メールアドレス"`
	PostalCode    string `json:"postal_code" validate:"postalcode" label:"郵便番号"`
	Prefecture    string `json:"prefecture" validate:"prefecture" label:"都道府県"`
	Address       string `json:"address" validate:"max=200" label:"住所"`
	StreetAddress string `json:"street_address" validate:"max=200" label:"番地・建物名"`
	Notes         string `json:"notes" label:"備考"`

	Types []string `json:"types"`
}

// MaxNotesLength caps member notes, in characters.
const MaxNotesLength = 2000

// ValidateMember validates the member form. A qualification tag must be one
// the form offers or one the member already held, so records that predate a
// catalogue change can still be edited.
func ValidateMember(in MemberInput, held []string) *Result {
	res := Validate(in)

	if utf8.RuneCountInString(in.Notes) > MaxNotesLength {
		res.add("notes", "備考", "備考は2000文字以内で入力してください。")
	}

	heldSet := make(map[string]bool, len(held))
	for _, t := range held {
		heldSet[t] = true
	}
	for _, t := range in.Types {
		t = strings.TrimSpace(t)
		if t == "" || models.IsQualificationType(t) || heldSet[t] {
			continue
		}
		res.add("types", "資格", "資格「"+t+"」は選択できません。")
		break
	}
	return res
}

// LoginInput is the sign-in form.
type LoginInput struct {
	LoginID  string `json:"login_id" validate:"required,max=100" label:"ログインID"`
	Password string `json:"password" validate:"required,max=200" label:"パスワード"`
}

// OperatorInput is the new-operator form. The password is checked by
// authutil.ValidatePassword.
type OperatorInput struct {
	FullName string `json:"full_name" validate:"required,max=100" label:"氏名"`
	LoginID  string `json:"login_id" validate:"required,max=100" label:"ログインID"`
	Role     string `json:"role" validate:"required,role" label:"権限"`
}

// IsValidEmail checks for a bare RFC 5322 address.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress also accepts "Name <email>".
	return addr.Address == email
}

// IsValidPostalCode accepts empty input or seven digits in any width, with
// or without the hyphen.
func IsValidPostalCode(s string) bool {
	if strings.TrimSpace(s) == "" {
		return true
	}
	digits := normalize.PostalCode(s)
	if len(digits) != 7 {
		return false
	}
	// Reject stray letters that PostalCode would silently drop.
	for _, r := range normalize.Phone(s) {
		if (r < '0' || r > '9') && r != '-' && r != ' ' {
			return false
		}
	}
	return true
}

// IsValidPhone accepts empty input or 10 to 11 digits with optional hyphens,
// spaces and parentheses, in either width.
func IsValidPhone(s string) bool {
	s = normalize.Phone(s)
	if s == "" {
		return true
	}
	n := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			n++
		case r == '-' || r == ' ' || r == '(' || r == ')' || r == '+':
		default:
			return false
		}
	}
	return n >= 10 && n <= 11
}

// IsValidObjectID checks if the given string is a valid MongoDB ObjectID hex.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
