// internal/app/features/members/form.go
package members

import (
	"errors"
	"net/http"
	"strings"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/auth"
	"github.com/dalemusser/stratamembers/internal/app/system/formutil"
	"github.com/dalemusser/stratamembers/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratamembers/internal/app/system/inputval"
	"github.com/dalemusser/stratamembers/internal/app/system/prefectures"
	"github.com/dalemusser/stratamembers/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const (
	msgDuplicateNumber = "この会員番号はすでに登録されています。"
	msgSaveFailed      = "保存できませんでした。しばらくしてから再度お試しください。"
)

type typeOption struct {
	Value   string
	Checked bool
	Retired bool
}

// FormVM is the view model for the new and edit forms.
type FormVM struct {
	formutil.Base
	Action      string
	IsEdit      bool
	MemberID    string
	Input       inputval.MemberInput
	TypeOptions []typeOption
	Prefectures []string
}

func newFormVM(r *http.Request, title, action string, in inputval.MemberInput, held []string) FormVM {
	vm := FormVM{
		Base:        formutil.NewBase(r, title, "/members"),
		Action:      action,
		Input:       in,
		Prefectures: prefectures.All,
	}
	checked := make(map[string]bool, len(in.Types))
	for _, t := range in.Types {
		checked[t] = true
	}
	for _, t := range models.QualificationTypes {
		vm.TypeOptions = append(vm.TypeOptions, typeOption{Value: t, Checked: checked[t]})
	}
	// Tags outside the catalogue stay selectable on members that hold them.
	for _, t := range held {
		if !models.IsQualificationType(t) {
			vm.TypeOptions = append(vm.TypeOptions, typeOption{Value: t, Checked: checked[t], Retired: true})
		}
	}
	return vm
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, code int, vm FormVM) {
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	templates.Render(w, r, "members/form", vm)
}

func parseInput(r *http.Request) inputval.MemberInput {
	var types []string
	for _, t := range r.Form["types"] {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	get := func(k string) string { return strings.TrimSpace(r.PostFormValue(k)) }
	return inputval.MemberInput{
		Number:        get("number"),
		Name:          htmlsanitize.PlainText(get("name")),
		Furigana:      htmlsanitize.PlainText(get("furigana")),
		Phone:         get("phone"),
		Email:         get("email"),
		PostalCode:    get("postal_code"),
		Prefecture:    get("prefecture"),
		Address:       get("address"),
		StreetAddress: get("street_address"),
		Notes:         get("notes"),
		Types:         types,
	}
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, newFormVM(r, "会員登録", "/members/new", inputval.MemberInput{}, nil))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	vm := newFormVM(r, "会員登録", "/members/new", in, nil)
	if res := inputval.ValidateMember(in, nil); res.HasErrors() {
		vm.SetFieldErrors(res.ByField())
		h.renderForm(w, r, http.StatusBadRequest, vm)
		return
	}

	m, err := h.members.Create(r.Context(), memberstore.CreateInput{
		Number:        in.Number,
		Name:          in.Name,
		Furigana:      in.Furigana,
		Types:         in.Types,
		Phone:         in.Phone,
		Email:         in.Email,
		PostalCode:    in.PostalCode,
		Prefecture:    in.Prefecture,
		Address:       address.TrimStreetFromCity(in.Address, in.StreetAddress),
		StreetAddress: in.StreetAddress,
		Notes:         htmlsanitize.Notes(in.Notes),
	})
	if err != nil {
		h.saveFailed(w, r, vm, err)
		return
	}

	actor, _ := auth.CurrentUser(r)
	h.auditLogger.MemberCreated(r.Context(), r, actor.ID, m.ID, m.Name)
	h.logger.Info("member created", zap.String("member_id", m.ID.Hex()), zap.String("actor", actor.LoginID))
	http.Redirect(w, r, "/members/"+m.ID.Hex(), http.StatusSeeOther)
}

func (h *Handler) saveFailed(w http.ResponseWriter, r *http.Request, vm FormVM, err error) {
	switch {
	case errors.Is(err, memberstore.ErrDuplicateNumber):
		vm.SetFieldError("number", msgDuplicateNumber)
		h.renderForm(w, r, http.StatusConflict, vm)
	case errors.Is(err, memberstore.ErrInvalidPostalCode):
		vm.SetFieldError("postal_code", "郵便番号は7桁の数字で入力してください。")
		h.renderForm(w, r, http.StatusBadRequest, vm)
	default:
		h.errLog.Log(r, "failed to save member", err)
		vm.SetError(msgSaveFailed)
		h.renderForm(w, r, http.StatusInternalServerError, vm)
	}
}

func inputFromMember(m models.Member) inputval.MemberInput {
	return inputval.MemberInput{
		Number:        m.Number,
		Name:          m.Name,
		Furigana:      m.Furigana,
		Phone:         m.Phone,
		Email:         m.Email,
		PostalCode:    m.FormattedPostalCode(),
		Prefecture:    m.Prefecture,
		Address:       m.Address,
		StreetAddress: m.StreetAddress,
		Notes:         m.Notes,
		Types:         append([]string(nil), m.Types...),
	}
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}
	vm := newFormVM(r, m.Name+" の編集", "/members/"+m.ID.Hex(), inputFromMember(*m), m.Types)
	vm.IsEdit = true
	vm.MemberID = m.ID.Hex()
	h.renderForm(w, r, http.StatusOK, vm)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := parseInput(r)
	vm := newFormVM(r, cur.Name+" の編集", "/members/"+cur.ID.Hex(), in, cur.Types)
	vm.IsEdit = true
	vm.MemberID = cur.ID.Hex()
	if res := inputval.ValidateMember(in, cur.Types); res.HasErrors() {
		vm.SetFieldErrors(res.ByField())
		h.renderForm(w, r, http.StatusBadRequest, vm)
		return
	}

	city := address.TrimStreetFromCity(in.Address, in.StreetAddress)
	notes := htmlsanitize.Notes(in.Notes)
	types := in.Types
	if types == nil {
		types = []string{}
	}
	m, err := h.members.Update(r.Context(), cur.ID, memberstore.UpdateInput{
		Number:        &in.Number,
		Name:          &in.Name,
		Furigana:      &in.Furigana,
		Types:         &types,
		Phone:         &in.Phone,
		Email:         &in.Email,
		PostalCode:    &in.PostalCode,
		Prefecture:    &in.Prefecture,
		Address:       &city,
		StreetAddress: &in.StreetAddress,
		Notes:         &notes,
	})
	if errors.Is(err, memberstore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.saveFailed(w, r, vm, err)
		return
	}

	actor, _ := auth.CurrentUser(r)
	if fields := changedFields(*cur, m); len(fields) > 0 {
		h.auditLogger.MemberUpdated(r.Context(), r, actor.ID, m.ID, m.Name, fields)
	}
	http.Redirect(w, r, "/members/"+m.ID.Hex(), http.StatusSeeOther)
}

// changedFields names the stored fields that differ between before and after.
func changedFields(before, after models.Member) []string {
	var out []string
	add := func(name string, a, b string) {
		if a != b {
			out = append(out, name)
		}
	}
	add("number", before.Number, after.Number)
	add("name", before.Name, after.Name)
	add("furigana", before.Furigana, after.Furigana)
	add("types", strings.Join(before.Types, "\x00"), strings.Join(after.Types, "\x00"))
	add("phone", before.Phone, after.Phone)
	add("email", before.Email, after.Email)
	add("postal_code", before.PostalCode, after.PostalCode)
	add("prefecture", before.Prefecture, after.Prefecture)
	add("address", before.Address, after.Address)
	add("street_address", before.StreetAddress, after.StreetAddress)
	add("notes", before.Notes, after.Notes)
	return out
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.members.Delete(r.Context(), m.ID); err != nil && !errors.Is(err, memberstore.ErrNotFound) {
		h.errLog.Log(r, "failed to delete member", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	actor, _ := auth.CurrentUser(r)
	h.auditLogger.MemberDeleted(r.Context(), r, actor.ID, m.ID, m.Name)
	http.Redirect(w, r, "/members", http.StatusSeeOther)
}
