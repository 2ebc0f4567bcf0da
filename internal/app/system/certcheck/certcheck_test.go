package certcheck

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCheck_TrustedServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	info := Checker{RootCAs: pool}.Check(context.Background(), srv.URL+"/api/search")

	if !info.IsValid || info.Error != "" {
		t.Fatalf("Check() = %+v, want valid", info)
	}
	if info.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", info.Host)
	}
	if !info.ExpiresAt.Equal(srv.Certificate().NotAfter) {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, srv.Certificate().NotAfter)
	}
	if info.DaysLeft <= 0 {
		t.Errorf("DaysLeft = %d, want positive", info.DaysLeft)
	}
}

func TestCheck_UntrustedServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	info := Checker{RootCAs: x509.NewCertPool(), Timeout: time.Second}.Check(context.Background(), srv.URL)

	if info.IsValid {
		t.Error("Check() untrusted certificate reported valid")
	}
	if !strings.HasPrefix(info.Error, "connection failed") {
		t.Errorf("Error = %q, want connection failure", info.Error)
	}
}

func TestCheck_ExpiredByClock(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	later := func() time.Time { return srv.Certificate().NotAfter.Add(48 * time.Hour) }

	info := Checker{RootCAs: pool, Now: later}.Check(context.Background(), srv.URL)

	if info.IsValid {
		t.Error("Check() past NotAfter reported valid")
	}
	if info.DaysLeft > -1 {
		t.Errorf("DaysLeft = %d, want negative", info.DaysLeft)
	}
}

func TestCheck_NotHTTPS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://zipcloud.example", ErrNotHTTPS.Error()},
		{"://bad", "invalid URL"},
		{"", "invalid URL"},
	}
	for _, tt := range tests {
		if got := Check(context.Background(), tt.in); got.Error != tt.want || got.IsValid {
			t.Errorf("Check(%q) = %+v, want error %q", tt.in, got, tt.want)
		}
	}
}
