// internal/app/system/certcheck/certcheck.go
package certcheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"time"
)

// CertInfo describes the leaf certificate an HTTPS endpoint presents.
type CertInfo struct {
	Host      string    `json:"host"`
	ExpiresAt time.Time `json:"expires_at"`
	DaysLeft  int       `json:"days_left"`
	Issuer    string    `json:"issuer"`
	IsValid   bool      `json:"is_valid"`
	Error     string    `json:"error,omitempty"`
}

// Checker dials endpoints and reads their certificates.
type Checker struct {
	Timeout time.Duration
	RootCAs *x509.CertPool // nil uses the system pool
	Now     func() time.Time
}

// ErrNotHTTPS is reported for plain http endpoints.
var ErrNotHTTPS = errors.New("endpoint does not use TLS")

// Check inspects rawURL with a default Checker.
func Check(ctx context.Context, rawURL string) CertInfo {
	return Checker{}.Check(ctx, rawURL)
}

// Check connects to the host of rawURL and reports its certificate. The
// chain is verified, so an untrusted or mismatched certificate is reported
// as invalid with the verification error.
func (c Checker) Check(ctx context.Context, rawURL string) CertInfo {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return CertInfo{Host: rawURL, Error: "invalid URL"}
	}
	info := CertInfo{Host: u.Hostname()}
	if u.Scheme != "https" {
		info.Error = ErrNotHTTPS.Error()
		return info
	}

	port := u.Port()
	if port == "" {
		port = "443"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	d := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    &tls.Config{ServerName: info.Host, RootCAs: c.RootCAs},
	}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(info.Host, port))
	if err != nil {
		info.Error = "connection failed: " + err.Error()
		return info
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		info.Error = "no certificates presented"
		return info
	}

	leaf := certs[0]
	t := now()
	info.ExpiresAt = leaf.NotAfter
	info.DaysLeft = int(leaf.NotAfter.Sub(t).Hours() / 24)
	info.Issuer = leaf.Issuer.CommonName
	if info.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		info.Issuer = leaf.Issuer.Organization[0]
	}
	info.IsValid = t.After(leaf.NotBefore) && t.Before(leaf.NotAfter)
	return info
}
