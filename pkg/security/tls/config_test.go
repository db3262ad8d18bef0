package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chryso-hq/forms/pkg/config"
)

func TestNewServerConfig_MinVersion(t *testing.T) {
	r := NewCertificateReloader("cert.pem", "key.pem", time.Minute, discardLogger())

	tests := []struct {
		version string
		want    uint16
		wantErr bool
	}{
		{"1.3", tls.VersionTLS13, false},
		{"1.2", tls.VersionTLS12, false},
		{"", tls.VersionTLS13, false},
		{"1.1", 0, true},
	}
	for _, tt := range tests {
		t.Run("version "+tt.version, func(t *testing.T) {
			cfg, err := NewServerConfig(&config.TLSConfig{MinVersion: tt.version}, r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewServerConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.MinVersion != tt.want {
				t.Errorf("MinVersion = %x, want %x", cfg.MinVersion, tt.want)
			}
		})
	}

	if _, err := NewServerConfig(&config.TLSConfig{}, nil); err == nil {
		t.Error("NewServerConfig() without reloader should fail")
	}
	if _, err := NewServerConfig(&config.TLSConfig{ClientCAFile: "missing.pem"}, r); err == nil {
		t.Error("NewServerConfig() with missing client CA should fail")
	}
}

// serveTLS serves a handler echoing ClientIdentity on a loopback listener.
func serveTLS(t *testing.T, cfg *tls.Config) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ClientIdentity(r))
	})}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return "https://" + ln.Addr().String()
}

func TestNewServerConfig_ClientCertificates(t *testing.T) {
	ca := newTestCA(t)
	dir := t.TempDir()
	now := time.Now()
	serverCert, serverKey := ca.issue(t, dir, "localhost", now.Add(-time.Hour), now.Add(time.Hour), x509.ExtKeyUsageServerAuth)
	clientCert, clientKey := ca.issue(t, dir, "ops-admin", now.Add(-time.Hour), now.Add(time.Hour), x509.ExtKeyUsageClientAuth)
	caFile := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(caFile, ca.pem, 0o600); err != nil {
		t.Fatal(err)
	}

	reloader := NewCertificateReloader(serverCert, serverKey, time.Minute, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reloader.Start(ctx); err != nil {
		t.Fatal(err)
	}

	serverTLS, err := NewServerConfig(&config.TLSConfig{MinVersion: "1.2", ClientCAFile: caFile}, reloader)
	if err != nil {
		t.Fatalf("NewServerConfig() error = %v", err)
	}
	url := serveTLS(t, serverTLS)

	roots := x509.NewCertPool()
	roots.AddCert(ca.cert)
	client := func(certs ...tls.Certificate) *http.Client {
		return &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: roots, ServerName: "localhost", Certificates: certs},
		}}
	}

	if _, err := client().Get(url); err == nil {
		t.Error("request without client certificate should fail the handshake")
	}

	pair, err := tls.LoadX509KeyPair(clientCert, clientKey)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client(pair).Get(url)
	if err != nil {
		t.Fatalf("request with client certificate: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ops-admin" {
		t.Errorf("ClientIdentity() = %q, want ops-admin", body)
	}
}

func TestClientIdentity_PlainHTTP(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	if got := ClientIdentity(r); got != "" {
		t.Errorf("ClientIdentity() = %q, want empty", got)
	}
}

