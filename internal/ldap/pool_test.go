package ldap

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Self-signed, test use only.
const testCACert = `-----BEGIN CERTIFICATE-----
MIIDBTCCAe2gAwIBAgIUF3pBeK7vWjkiOn5vkdviUpPSZDIwDQYJKoZIhvcNAQEL
BQAwEjEQMA4GA1UEAwwHVGVzdCBDQTAeFw0yNTEwMjQxNzM3NDNaFw0yNjEwMjQx
NzM3NDNaMBIxEDAOBgNVBAMMB1Rlc3QgQ0EwggEiMA0GCSqGSIb3DQEBAQUAA4IB
DwAwggEKAoIBAQDcyerW4aUDqSKC9QPHuL1wZadQqNOP97LwivFl0rnJ1TTUw8Xn
qX+V16tViOSuPq+tp4vxLDE4Sv0dJbXm35+7mb9xkmJFvIQaP8wQweza/k/GnkuM
pCM9voUpxC2wDnNSenw46L0eTdFPyXDTDRQR8vbS85OektHdsSgMwxubugS0CihD
WlIKYZnvpLPrvjBoplfS5Ff3gdse2d5K9qzl4Vs+KDyfxJegML9ATmPnXWLkyl13
3WjV/rjlQrxqtIJH+APUVyGBCNe+LtymOHeIy+FMX3JpKV1CLGyVoQ1sowzgm17D
wgErA2L6/quQpkNKNuoZSuDbFdJBiHyGWNsRAgMBAAGjUzBRMB0GA1UdDgQWBBRg
vCPlMaoj4A/WZxqd7kvtbfQpZTAfBgNVHSMEGDAWgBRgvCPlMaoj4A/WZxqd7kvt
bfQpZTAPBgNVHRMBAf8EBTADAQH/MA0GCSqGSIb3DQEBCwUAA4IBAQBFbrOXuzvE
pdNN/f64PpkJakfrWGXAR4xhZul+2lXgJQd0iq7mEOkWpPlOq8/UeDTlLfOSPcDw
FrQuODeDQeUmeglZvvmJIinOzFYf4wsxaJNqdQoF3bwY6UmUWlABDoRvVkWHFMwA
VpAD/4I2VNcE+Mqe03Lx0UO+xkZ74KzHrEwKpYcPP4J3K78S16NAlz3MaH4eLRWK
yVZWTBLVmuIFB5ITwdrdL92vdP6IQoXYOSrFDyhXkSoB+UxgaZwDji2wnYw3KZrm
aomYL4gPZz6Cnw2euSkQEY64gm/e1ueJDarBkzWUFUhmTMTJ/XRJpnhdu5FTqwKj
eNsm2nzlwhTR
-----END CERTIFICATE-----`

func testConfig(urls ...string) *ConnectionConfig {
	config := DefaultConfig()
	config.LDAPURLs = urls
	return config
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.UseTLS {
		t.Error("Default config should not force StartTLS")
	}

	if config.TLSConfig == nil {
		t.Fatal("Default config should have TLS config")
	}

	if config.TLSConfig.InsecureSkipVerify {
		t.Error("Default config should validate certificates")
	}

	if config.TLSConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", config.TLSConfig.MinVersion)
	}

	if config.MaxConnections != 4 {
		t.Errorf("MaxConnections = %d, want 4", config.MaxConnections)
	}

	if config.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Timeout)
	}

	if err := validateConfig(testConfig("ldap://localhost")); err != nil {
		t.Errorf("default config with a URL should validate: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{
			name:    "no URLs",
			mutate:  func(c *ConnectionConfig) { c.LDAPURLs = nil },
			wantErr: "at least one LDAP URL",
		},
		{
			name:    "zero max connections",
			mutate:  func(c *ConnectionConfig) { c.MaxConnections = 0 },
			wantErr: "MaxConnections must be positive",
		},
		{
			name:    "too many max connections",
			mutate:  func(c *ConnectionConfig) { c.MaxConnections = MaxConnectionPoolLimit + 1 },
			wantErr: "MaxConnections too high",
		},
		{
			name:    "zero max idle time",
			mutate:  func(c *ConnectionConfig) { c.MaxIdleTime = 0 },
			wantErr: "MaxIdleTime must be positive",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *ConnectionConfig) { c.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
		{
			name:    "negative max retries",
			mutate:  func(c *ConnectionConfig) { c.MaxRetries = -1 },
			wantErr: "MaxRetries cannot be negative",
		},
		{
			name:    "flat backoff",
			mutate:  func(c *ConnectionConfig) { c.BackoffFactor = 1.0 },
			wantErr: "BackoffFactor must be greater than 1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig("ldap://localhost")
			tt.mutate(config)

			err := validateConfig(config)
			if err == nil {
				t.Fatal("validateConfig() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionPool_CreateWithInvalidURL(t *testing.T) {
	_, err := NewConnectionPool(t.Context(), testConfig("ldap://localhost", "http://localhost"))
	if err == nil || !strings.Contains(err.Error(), "invalid LDAP URL http://localhost") {
		t.Errorf("NewConnectionPool() error = %v", err)
	}
}

func TestConnectionPool_StatsAndClose(t *testing.T) {
	pool, err := NewConnectionPool(t.Context(), testConfig("ldap://ldap1.example.org", "ldaps://ldap2.example.org"))
	if err != nil {
		t.Fatalf("NewConnectionPool() error: %v", err)
	}

	stats := pool.Stats()
	if stats.Idle != 0 || stats.Active != 0 || stats.Created != 0 {
		t.Errorf("fresh pool stats = %+v", stats)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	if _, err := pool.Get(t.Context()); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Get() on closed pool error = %v", err)
	}
}

func TestConnectionPool_CopiesCAIntoTLSConfig(t *testing.T) {
	config := testConfig("ldaps://ldap.example.org")
	config.TLSCACert = testCACert
	original := config.TLSConfig

	pool, err := NewConnectionPool(t.Context(), config)
	if err != nil {
		t.Fatalf("NewConnectionPool() error: %v", err)
	}
	defer pool.Close()

	cp := pool.(*connectionPool)
	if cp.config.TLSConfig.RootCAs == nil {
		t.Error("pool TLS config should carry RootCAs")
	}
	if original.RootCAs != nil || config.TLSConfig != original {
		t.Error("caller's config should not be modified")
	}
}

func TestTLSConfigServerName(t *testing.T) {
	tests := []struct {
		name           string
		tlsConfig      *tls.Config
		wantServerName string
	}{
		{name: "nil config uses defaults", tlsConfig: nil, wantServerName: "ldap.example.org"},
		{name: "empty server name", tlsConfig: &tls.Config{}, wantServerName: "ldap.example.org"},
		{name: "explicit server name kept", tlsConfig: &tls.Config{ServerName: "override"}, wantServerName: "override"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig("ldaps://ldap.example.org")
			config.TLSConfig = tt.tlsConfig
			p := &connectionPool{config: config}

			got := p.tlsConfig(&ServerInfo{Host: "ldap.example.org", Port: 636, UseTLS: true})
			if got.ServerName != tt.wantServerName {
				t.Errorf("ServerName = %q, want %q", got.ServerName, tt.wantServerName)
			}
			if tt.tlsConfig != nil && tt.tlsConfig.ServerName == "" && got == tt.tlsConfig {
				t.Error("tlsConfig() should clone the configured TLS settings")
			}
		})
	}
}

func TestBuildCertPool(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "ca.pem")
	invalid := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(valid, []byte(testCACert), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(invalid, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "system only"},
		{name: "content", content: testCACert},
		{name: "file", file: valid},
		{name: "invalid content", content: "not a certificate", wantErr: "invalid PEM format"},
		{name: "invalid file", file: invalid, wantErr: "invalid PEM format"},
		{name: "missing file", file: filepath.Join(dir, "missing.pem"), wantErr: "failed to read CA certificate file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := buildCertPool(tt.file, tt.content)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("buildCertPool() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildCertPool() error: %v", err)
			}
			if pool == nil {
				t.Fatal("buildCertPool() returned nil pool")
			}
		})
	}
}

func TestPooledConnection_Methods(t *testing.T) {
	returned := 0
	now := time.Now()
	server := &ServerInfo{Host: "ldap.example.org", Port: 389}
	pc := &PooledConnection{
		lastUsed:     now,
		healthy:      true,
		serverInfo:   server,
		returnToPool: func(*PooledConnection) { returned++ },
	}

	if pc.Conn() != nil {
		t.Error("Conn() should be nil")
	}
	if pc.ServerInfo() != server {
		t.Error("ServerInfo() mismatch")
	}
	if !pc.IsHealthy() {
		t.Error("IsHealthy() = false")
	}
	if !pc.LastUsed().Equal(now) {
		t.Error("LastUsed() mismatch")
	}

	pc.Close()
	if returned != 1 {
		t.Errorf("Close() returned connection %d times", returned)
	}
}

func TestConnectionError(t *testing.T) {
	err := NewConnectionError("dial failed", true, nil)
	if err.Error() != "dial failed" {
		t.Errorf("Error() = %s", err.Error())
	}
	if !err.IsRetryable() {
		t.Error("Error should be retryable")
	}

	cause := NewConnectionError("underlying", false, nil)
	wrapped := NewConnectionError("wrapped", true, cause)
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
	if wrapped.Error() != "wrapped: underlying" {
		t.Errorf("Error() = %s", wrapped.Error())
	}
}

func BenchmarkServerInfoToURL(b *testing.B) {
	server := &ServerInfo{Host: "ldap.example.org", Port: 636, UseTLS: true}

	for b.Loop() {
		_ = ServerInfoToURL(server)
	}
}
