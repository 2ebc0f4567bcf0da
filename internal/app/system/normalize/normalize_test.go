package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizers(t *testing.T) {
	cases := map[string]struct {
		fn   func(string) string
		in   []string
		want []string
	}{
		"Email": {Email,
			[]string{" Office@Example.COM ", "\tuser@example.com\n", "   "},
			[]string{"office@example.com", "user@example.com", ""}},
		"Name": {Name,
			[]string{"山田　花子", "  受付 太郎  ", "JOHN DOE", ""},
			[]string{"山田 花子", "受付 太郎", "JOHN DOE", ""}},
		"LoginID": {LoginID,
			[]string{"kanri", " KANRI ", "Office@Example.com"},
			[]string{"kanri", "kanri", "office@example.com"}},
		"Status": {Status,
			[]string{"Active", "  DISABLED ", ""},
			[]string{"active", "disabled", ""}},
		"Role": {Role,
			[]string{" STAFF ", "Admin", "   "},
			[]string{"staff", "admin", ""}},
		"QueryParam": {QueryParam,
			[]string{"  山田 ", "M0101"},
			[]string{"山田", "M0101"}},
		"Phone": {Phone,
			[]string{"０３－１２３４－５６７８", " 090-0000-0000 ", ""},
			[]string{"03-1234-5678", "090-0000-0000", ""}},
		"Address": {Address,
			[]string{"西新宿２－８－１", "　東京都新宿区　", ""},
			[]string{"西新宿2-8-1", "東京都新宿区", ""}},
		"PostalCode": {PostalCode,
			[]string{"160-0023", "１６０－００２３", "〒160 0023", "abc"},
			[]string{"1600023", "1600023", "1600023", ""}},
		"Furigana": {Furigana,
			[]string{"やまだ はなこ", "ヤマダ　ハナコ", " すずき ", "Smith"},
			[]string{"ヤマダ ハナコ", "ヤマダ ハナコ", "スズキ", "Smith"}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			for i, in := range tc.in {
				assert.Equal(t, tc.want[i], tc.fn(in), "%s(%q)", name, in)
			}
		})
	}
}
