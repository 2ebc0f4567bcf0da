package resources

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssetsHandler(t *testing.T) {
	h := AssetsHandler("/assets")

	tests := []struct {
		path     string
		wantCode int
		wantType string
	}{
		{"/assets/css/app.css", http.StatusOK, "text/css"},
		{"/assets/js/app.js", http.StatusOK, "javascript"},
		{"/assets/css/missing.css", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
			continue
		}
		if tt.wantType != "" && !strings.Contains(rec.Header().Get("Content-Type"), tt.wantType) {
			t.Errorf("GET %s Content-Type = %q, want %q", tt.path, rec.Header().Get("Content-Type"), tt.wantType)
		}
		if got := rec.Header().Get("Cache-Control"); tt.wantCode == http.StatusOK && got != "public, max-age=86400" {
			t.Errorf("GET %s Cache-Control = %q", tt.path, got)
		}
	}
}

func TestLoadSharedTemplatesIsIdempotent(t *testing.T) {
	LoadSharedTemplates()
	LoadSharedTemplates()
}
