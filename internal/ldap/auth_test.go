package ldap

import (
	"testing"
)

func TestConnectionConfig_GetAuthMethod(t *testing.T) {
	tests := []struct {
		name     string
		config   *ConnectionConfig
		expected AuthMethod
	}{
		{
			name: "simple bind with username and password",
			config: &ConnectionConfig{
				Username: "cn=admin,dc=example,dc=org",
				Password: "secret",
			},
			expected: AuthMethodSimpleBind,
		},
		{
			name: "kerberos with realm and keytab",
			config: &ConnectionConfig{
				KerberosRealm:  "EXAMPLE.ORG",
				KerberosKeytab: "/path/to/keytab",
			},
			expected: AuthMethodKerberos,
		},
		{
			name: "kerberos with realm and ccache",
			config: &ConnectionConfig{
				KerberosRealm:  "EXAMPLE.ORG",
				KerberosCCache: "/tmp/krb5cc_1000",
			},
			expected: AuthMethodKerberos,
		},
		{
			name: "kerberos takes precedence over simple bind",
			config: &ConnectionConfig{
				Username:      "loader",
				Password:      "secret",
				KerberosRealm: "EXAMPLE.ORG",
			},
			expected: AuthMethodKerberos,
		},
		{
			name: "username only is simple bind",
			config: &ConnectionConfig{
				Username: "cn=admin,dc=example,dc=org",
			},
			expected: AuthMethodSimpleBind,
		},
		{
			name: "realm alone is anonymous",
			config: &ConnectionConfig{
				KerberosRealm: "EXAMPLE.ORG",
			},
			expected: AuthMethodAnonymous,
		},
		{
			name:     "empty config is anonymous",
			config:   &ConnectionConfig{},
			expected: AuthMethodAnonymous,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.GetAuthMethod()
			if result != tt.expected {
				t.Errorf("GetAuthMethod() = %v, expected %v", result, tt.expected)
			}
			if got, want := tt.config.HasAuthentication(), tt.expected != AuthMethodAnonymous; got != want {
				t.Errorf("HasAuthentication() = %v, expected %v", got, want)
			}
		})
	}
}

func TestAuthMethod_String(t *testing.T) {
	tests := []struct {
		method   AuthMethod
		expected string
	}{
		{AuthMethodAnonymous, "anonymous"},
		{AuthMethodSimpleBind, "simple"},
		{AuthMethodKerberos, "kerberos"},
		{AuthMethod(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.method.String()
			if result != tt.expected {
				t.Errorf("String() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestSearchScope_String(t *testing.T) {
	tests := []struct {
		scope    SearchScope
		expected string
	}{
		{ScopeBaseObject, "base"},
		{ScopeSingleLevel, "one"},
		{ScopeWholeSubtree, "sub"},
		{SearchScope(7), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.scope.String(); got != tt.expected {
			t.Errorf("SearchScope(%d).String() = %q, expected %q", tt.scope, got, tt.expected)
		}
	}
}

func TestParseSearchScope(t *testing.T) {
	tests := []struct {
		input    string
		expected SearchScope
		wantErr  bool
	}{
		{"base", ScopeBaseObject, false},
		{"one", ScopeSingleLevel, false},
		{"sub", ScopeWholeSubtree, false},
		{" Subtree ", ScopeWholeSubtree, false},
		{"oneLevel", ScopeSingleLevel, false},
		{"children", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSearchScope(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSearchScope(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("ParseSearchScope(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
