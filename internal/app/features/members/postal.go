// internal/app/features/members/postal.go
package members

import (
	"errors"
	"net/http"

	"github.com/dalemusser/stratamembers/internal/app/system/jsonutil"
	"github.com/dalemusser/stratamembers/internal/app/system/postal"
	"go.uber.org/zap"
)

// postalResponse fills the address fields of the member form.
type postalResponse struct {
	PostalCode    string `json:"postal_code"`
	Prefecture    string `json:"prefecture"`
	Address       string `json:"address"`
	StreetAddress string `json:"street_address"`
}

func (h *Handler) postalLookup(w http.ResponseWriter, r *http.Request) {
	if h.postal == nil {
		jsonutil.Error(w, http.StatusServiceUnavailable, "郵便番号検索は利用できません。")
		return
	}

	res, err := h.postal.Lookup(r.Context(), r.URL.Query().Get("code"))
	switch {
	case errors.Is(err, postal.ErrInvalidCode):
		jsonutil.BadRequest(w, "郵便番号は7桁の数字で入力してください。")
		return
	case errors.Is(err, postal.ErrNotFound):
		jsonutil.NotFound(w, "該当する住所が見つかりません。")
		return
	case err != nil:
		h.logger.Warn("postal lookup failed", zap.Error(err))
		jsonutil.Unavailable(w, "郵便番号検索に失敗しました。")
		return
	}

	// The city portion of a member address starts with the prefecture.
	split := res.Split(h.splitter)
	jsonutil.OK(w, postalResponse{
		PostalCode:    formatPostalCode(res.PostalCode),
		Prefecture:    res.Prefecture,
		Address:       res.Prefecture + split.City,
		StreetAddress: split.Street,
	})
}

func formatPostalCode(code string) string {
	if len(code) != 7 {
		return code
	}
	return code[:3] + "-" + code[3:]
}
