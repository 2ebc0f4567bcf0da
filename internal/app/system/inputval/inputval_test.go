package inputval

import (
	"strings"
	"testing"
)

func validMember() MemberInput {
	return MemberInput{
		Number:     "A-102",
		Name:       "山田 花子",
		Furigana:   "ヤマダ ハナコ",
		Phone:      "０９０－１２３４－５６７８",
		Email:      "hanako@example.com",
		PostalCode: "１００－０００１",
		Prefecture: "東京都",
		Address:    "千代田区千代田",
		Types:      []string{"ベビマ"},
	}
}

func TestValidateMember(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*MemberInput)
		held      []string
		wantField string
	}{
		{name: "valid", mutate: func(*MemberInput) {}},
		{name: "optional fields empty", mutate: func(in *MemberInput) {
			in.Phone, in.Email, in.PostalCode, in.Prefecture = "", "", "", ""
		}},
		{name: "missing name", mutate: func(in *MemberInput) { in.Name = "" }, wantField: "name"},
		{name: "bad email", mutate: func(in *MemberInput) { in.Email = "hanako@" }, wantField: "email"},
		{name: "short postal code", mutate: func(in *MemberInput) { in.PostalCode = "100-001" }, wantField: "postal_code"},
		{name: "postal code with letters", mutate: func(in *MemberInput) { in.PostalCode = "100-0001a" }, wantField: "postal_code"},
		{name: "unknown prefecture", mutate: func(in *MemberInput) { in.Prefecture = "東京" }, wantField: "prefecture"},
		{name: "bad phone", mutate: func(in *MemberInput) { in.Phone = "090-abcd" }, wantField: "phone"},
		{name: "long notes", mutate: func(in *MemberInput) { in.Notes = strings.Repeat("あ", MaxNotesLength+1) }, wantField: "notes"},
		{name: "unoffered type", mutate: func(in *MemberInput) { in.Types = []string{"ベビーマッサージ"} }, wantField: "types"},
		{
			name:   "held legacy type",
			mutate: func(in *MemberInput) { in.Types = []string{"ベビーマッサージ", "ベビマ"} },
			held:   []string{"ベビーマッサージ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validMember()
			tt.mutate(&in)
			res := ValidateMember(in, tt.held)

			if tt.wantField == "" {
				if res.HasErrors() {
					t.Fatalf("ValidateMember() unexpected error: %s", res.First())
				}
				return
			}
			if _, ok := res.ByField()[tt.wantField]; !ok {
				t.Errorf("ValidateMember() errors = %+v, want one for %q", res.Errors, tt.wantField)
			}
		})
	}
}

func TestValidate_Messages(t *testing.T) {
	res := Validate(LoginInput{LoginID: "", Password: "x"})
	if !res.HasErrors() {
		t.Fatal("Validate() empty login id should fail")
	}
	if got, want := res.First(), "ログインIDを入力してください。"; got != want {
		t.Errorf("First() = %q, want %q", got, want)
	}
	if got := res.ByField()["login_id"]; got == "" {
		t.Errorf("ByField() missing login_id: %+v", res.ByField())
	}
}

func TestValidate_OperatorRole(t *testing.T) {
	res := Validate(OperatorInput{FullName: "受付 太郎", LoginID: "uketsuke", Role: "developer"})
	if got, want := res.ByField()["role"], "権限を一覧から選択してください。"; got != want {
		t.Errorf("ByField()[role] = %q, want %q", got, want)
	}
	if res := Validate(OperatorInput{FullName: "受付 太郎", LoginID: "uketsuke", Role: "staff"}); res.HasErrors() {
		t.Errorf("Validate() valid operator errors = %+v", res.Errors)
	}
}

func TestValidate_NoLabel(t *testing.T) {
	type Input struct {
		Name string `validate:"required"`
	}
	res := Validate(Input{})
	if got, want := res.First(), "Nameを入力してください。"; got != want {
		t.Errorf("First() = %q, want %q", got, want)
	}
}

func TestValidate_NonStruct(t *testing.T) {
	if res := Validate("not a struct"); res == nil {
		t.Error("Validate() non-struct should return non-nil result")
	}
}

func TestResult(t *testing.T) {
	r := &Result{}
	if r.HasErrors() || r.First() != "" || len(r.ByField()) != 0 {
		t.Error("empty Result should report nothing")
	}
	r.add("name", "氏名", "first")
	r.add("name", "氏名", "second")
	if r.First() != "first" || r.ByField()["name"] != "first" {
		t.Errorf("Result kept %q/%q, want first", r.First(), r.ByField()["name"])
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"user+tag@example.co.jp", true},
		{"", false},
		{"notanemail", false},
		{"user@", false},
		{"Name <user@example.com>", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestIsValidPostalCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"1000001", true},
		{"100-0001", true},
		{"１００－０００１", true},
		{"100 0001", true},
		{"100-000", false},
		{"10000011", false},
		{"〒100-0001", false},
	}
	for _, tt := range tests {
		if got := IsValidPostalCode(tt.in); got != tt.want {
			t.Errorf("IsValidPostalCode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"03-1234-5678", true},
		{"090-1234-5678", true},
		{"０９０１２３４５６７８", true},
		{"(03) 1234 5678", true},
		{"123", false},
		{"090-1234-5678-9999", false},
		{"03-1234-567x", false},
	}
	for _, tt := range tests {
		if got := IsValidPhone(tt.in); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidObjectID(t *testing.T) {
	tests := map[string]bool{
		"507f1f77bcf86cd799439011": true,
		"":                         false,
		"507f1f77":                 false,
		"zzzzzzzzzzzzzzzzzzzzzzzz": false,
	}
	for in, want := range tests {
		if got := IsValidObjectID(in); got != want {
			t.Errorf("IsValidObjectID(%q) = %v, want %v", in, got, want)
		}
	}
}
