package htmlsanitize

import (
	"strings"
	"testing"
)

func TestNotes(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{"empty", "   ", nil, nil},
		{"keeps formatting", "<p><b>要確認</b> 再送</p>", []string{"<b>要確認</b>", "<p>"}, nil},
		{"drops script", `講習会<script>alert(1)</script>`, []string{"講習会"}, []string{"script", "alert"}},
		{"drops handlers", `<p onclick="x()">メモ</p>`, []string{"メモ"}, []string{"onclick"}},
		{"link gets nofollow", `<a href="https://example.com">案内</a>`, []string{`rel="nofollow`, "案内"}, nil},
		{"javascript url removed", `<a href="javascript:alert(1)">x</a>`, nil, []string{"javascript"}},
		{"disallowed element", `<img src="x.png">写真`, []string{"写真"}, []string{"<img"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Notes(tt.in)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Notes(%q) = %q, want it to contain %q", tt.in, got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Notes(%q) = %q, should not contain %q", tt.in, got, bad)
				}
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"山田 花子", "山田 花子"},
		{"<b>山田</b> 花子", "山田 花子"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"  <i>x</i>  ", "x"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPlainText(t *testing.T) {
	tests := map[string]bool{
		"":                true,
		"一行目\n二行目":        true,
		"a < b":           true,
		"<p>html</p>":     false,
		"3 > 2 and 1 < 2": false,
	}
	for in, want := range tests {
		if got := IsPlainText(in); got != want {
			t.Errorf("IsPlainText(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrepareForDisplay(t *testing.T) {
	if got := PrepareForDisplay(""); got != "" {
		t.Errorf("PrepareForDisplay(\"\") = %q, want empty", got)
	}

	got := string(PrepareForDisplay("一行目\n<二行目>"))
	if !strings.Contains(got, "一行目<br>") {
		t.Errorf("plain text newline not converted: %q", got)
	}
	if strings.Contains(got, "<二行目>") {
		t.Errorf("plain text was not escaped: %q", got)
	}

	got = string(PrepareForDisplay(`<p>ok</p><script>bad()</script>`))
	if strings.Contains(got, "script") || !strings.Contains(got, "<p>ok</p>") {
		t.Errorf("html not sanitized: %q", got)
	}
}
