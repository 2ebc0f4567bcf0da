package formutil

import (
	"net/http/httptest"
	"testing"
)

func TestSetError_Escapes(t *testing.T) {
	var b Base
	b.SetError("<b>bad</b>")
	if string(b.Error) != "&lt;b&gt;bad&lt;/b&gt;" {
		t.Errorf("Error = %q", b.Error)
	}
	if !b.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestSetFieldErrors(t *testing.T) {
	b := NewBase(httptest.NewRequest("POST", "/members", nil), "会員登録", "/members")
	if b.HasErrors() {
		t.Fatal("new Base should have no errors")
	}

	b.SetFieldErrors(map[string]string{
		"postal_code": "郵便番号は7桁の数字で入力してください。",
		"name":        "氏名を入力してください。",
	})

	if got := b.FieldError("name"); got != "氏名を入力してください。" {
		t.Errorf("FieldError(name) = %q", got)
	}
	if got := b.FieldError("email"); got != "" {
		t.Errorf("FieldError(email) = %q, want empty", got)
	}
	if string(b.Error) != "氏名を入力してください。" {
		t.Errorf("Error = %q, want the name error", b.Error)
	}
	if b.Title != "会員登録" {
		t.Errorf("Title = %q", b.Title)
	}
}
