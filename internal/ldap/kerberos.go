package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosSettings is the resolved view of the Kerberos part of a
// ConnectionConfig. Resolution never mutates the caller's config.
type kerberosSettings struct {
	principal  string
	realm      string
	password   string
	keytab     string
	ccache     string
	krb5Config string
}

// performKerberosAuth binds conn with GSSAPI using the configured credentials.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, serverInfo *ServerInfo) error {
	settings, err := prepareKerberosConfig(cfg)
	if err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	gssapiClient, source, err := createGSSAPIClient(settings)
	if err != nil {
		LogKerberosEvent(ctx, "credentials_failed", map[string]any{
			"principal": settings.principal,
			"realm":     settings.realm,
			"error":     err.Error(),
		})
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	LogKerberosEvent(ctx, "credentials_loaded", map[string]any{
		"principal": settings.principal,
		"realm":     settings.realm,
		"source":    source,
	})

	spn, err := buildServicePrincipal(cfg, serverInfo)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}
	LogKerberosEvent(ctx, "principal_resolved", map[string]any{"spn": spn})

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}

	return nil
}

// createGSSAPIClient creates a GSSAPI client from the first usable credential:
// explicit ccache, default ccache, explicit keytab, default keytab, password.
// It also reports which source was used.
func createGSSAPIClient(s *kerberosSettings) (ldap.GSSAPIClient, string, error) {
	if !fileExists(s.krb5Config) {
		return nil, "", fmt.Errorf("kerberos configuration file not found at %s; "+
			"create it or set ldap.kerberos_config. Example minimal configuration:\n%s",
			s.krb5Config, generateExampleKrb5Conf(s.realm))
	}

	noFAST := krb5client.DisablePAFXFAST(true)

	if s.ccache != "" && fileExists(s.ccache) {
		c, err := gssapi.NewClientFromCCache(s.ccache, s.krb5Config, noFAST)
		return c, "ccache", err
	}

	if ccache := getDefaultCCachePath(); fileExists(ccache) {
		c, err := gssapi.NewClientFromCCache(ccache, s.krb5Config, noFAST)
		return c, "default_ccache", err
	}

	if s.keytab != "" && fileExists(s.keytab) {
		c, err := gssapi.NewClientWithKeytab(s.principal, s.realm, s.keytab, s.krb5Config, noFAST)
		return c, "keytab", err
	}

	if keytab := getDefaultKeytabPath(); s.principal != "" && fileExists(keytab) {
		c, err := gssapi.NewClientWithKeytab(s.principal, s.realm, keytab, s.krb5Config, noFAST)
		return c, "default_keytab", err
	}

	if s.principal != "" && s.password != "" {
		c, err := gssapi.NewClientWithPassword(s.principal, s.realm, s.password, s.krb5Config, noFAST)
		return c, "password", err
	}

	return nil, "", fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns cfg.KerberosSPN, or ldap/<host> for serverInfo.
func buildServicePrincipal(cfg *ConnectionConfig, serverInfo *ServerInfo) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}

	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if serverInfo == nil || serverInfo.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	return "ldap/" + serverInfo.Host, nil
}

// prepareKerberosConfig resolves defaults and checks that some credential is available.
// A realm embedded in the username (user@REALM) is used when none is configured.
func prepareKerberosConfig(cfg *ConnectionConfig) (*kerberosSettings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	s := &kerberosSettings{
		principal:  cfg.Username,
		realm:      cfg.KerberosRealm,
		password:   cfg.Password,
		keytab:     cfg.KerberosKeytab,
		ccache:     cfg.KerberosCCache,
		krb5Config: cfg.KerberosConfig,
	}
	if s.krb5Config == "" {
		s.krb5Config = defaultKrb5Conf
	}

	if user, realm, ok := strings.Cut(s.principal, "@"); ok && !strings.Contains(realm, "@") {
		s.principal = user
		if s.realm == "" {
			s.realm = realm
		}
	}

	if s.realm == "" {
		return nil, fmt.Errorf("kerberos realm is required (set kerberos_realm or include realm in username)")
	}
	if s.principal == "" {
		return nil, fmt.Errorf("username (principal) is required for Kerberos authentication")
	}

	hasCredentials := (s.ccache != "" && fileExists(s.ccache)) ||
		fileExists(getDefaultCCachePath()) ||
		(s.keytab != "" && fileExists(s.keytab)) ||
		fileExists(getDefaultKeytabPath()) ||
		s.password != ""
	if !hasCredentials {
		return nil, fmt.Errorf("no suitable Kerberos credentials found: provide kerberos_ccache, kerberos_keytab, password, or ensure default credential cache/keytab exists")
	}

	return s, nil
}

// getDefaultCCachePath returns the default credential cache location.
func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// getDefaultKeytabPath returns the default keytab location.
func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// generateExampleKrb5Conf generates example krb5.conf content for error messages.
func generateExampleKrb5Conf(realm string) string {
	if realm == "" {
		realm = "EXAMPLE.ORG"
	}
	domain := strings.ToLower(realm)
	kdc := "kdc." + domain

	return fmt.Sprintf(`[libdefaults]
    default_realm = %[1]s
    dns_lookup_realm = false
    dns_lookup_kdc = false

[realms]
    %[1]s = {
        kdc = %[2]s:88
    }

[domain_realm]
    .%[3]s = %[1]s
    %[3]s = %[1]s`, realm, kdc, domain)
}
