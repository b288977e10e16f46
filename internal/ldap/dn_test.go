package ldap

import (
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestEscapeDNValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "John Doe", "John Doe"},
		{"comma", "Doe, John", `Doe\, John`},
		{"plus", "R+D", `R\+D`},
		{"quote", `say "hi"`, `say \"hi\"`},
		{"backslash", `a\b`, `a\\b`},
		{"angle brackets", "John<>Doe", `John\<\>Doe`},
		{"semicolon", "a;b", `a\;b`},
		{"leading hash", "#123", `\#123`},
		{"inner hash", "a#1", "a#1"},
		{"leading and trailing space", " John ", `\ John\ `},
		{"inner space", "a b", "a b"},
		{"single space", " ", `\ `},
		{"null byte", "a\x00b", `a\00b`},
		{"non-ascii", "Müller, Jürgen", `Müller\, Jürgen`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeDNValue(tt.input); got != tt.expected {
				t.Errorf("EscapeDNValue(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
			if got, want := NeedsDNEscaping(tt.input), tt.input != tt.expected; got != want {
				t.Errorf("NeedsDNEscaping(%q) = %v, expected %v", tt.input, got, want)
			}
		})
	}
}

func TestFormatRDN_ParsesBack(t *testing.T) {
	values := []string{
		"plain",
		"Doe, John",
		"#hash",
		`back\slash`,
		"R+D",
	}

	for _, v := range values {
		dn := JoinDN(FormatRDN("cn", v), "dc=example,dc=org")

		parsed, err := ldap.ParseDN(dn)
		if err != nil {
			t.Fatalf("ParseDN(%q) error: %v", dn, err)
		}
		if len(parsed.RDNs) != 3 {
			t.Fatalf("ParseDN(%q) gave %d RDNs, expected 3", dn, len(parsed.RDNs))
		}
		if got := parsed.RDNs[0].Attributes[0].Value; got != v {
			t.Errorf("RDN value of %q = %q, expected %q", dn, got, v)
		}
	}
}

func TestJoinDN(t *testing.T) {
	if got := JoinDN("ou=people", ""); got != "ou=people" {
		t.Errorf("JoinDN without parent = %q", got)
	}
	if got := JoinDN("uid=bob", "ou=people,dc=example,dc=org"); got != "uid=bob,ou=people,dc=example,dc=org" {
		t.Errorf("JoinDN = %q", got)
	}
}

func TestValidateDNSyntax(t *testing.T) {
	tests := []struct {
		dn      string
		wantErr bool
	}{
		{"dc=example,dc=org", false},
		{`cn=Doe\, John,dc=example,dc=org`, false},
		{"", true},
		{"not a dn", true},
	}

	for _, tt := range tests {
		err := ValidateDNSyntax(tt.dn)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateDNSyntax(%q) error = %v, wantErr %v", tt.dn, err, tt.wantErr)
		}
	}
}
