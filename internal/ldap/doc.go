/*
Package ldap is the directory access layer used to load generated entries
into a live server and to probe it with generated queries.

# Connection Management

NewClient returns a Client backed by a ConnectionPool:

  - Servers taken from ldap:// and ldaps:// URLs, tried round robin
  - StartTLS on plain URLs when UseTLS is set
  - Anonymous, simple or Kerberos (GSSAPI) bind per connection
  - Automatic retry with exponential backoff

# Distinguished Names

FormatRDN and JoinDN build the DNs of generated entries; values are escaped
per RFC 4514 by EscapeDNValue.

# Error Handling

Failures are reported as *LDAPError, categorized by result code. Loaders use
IsConflictError to skip entries that already exist and IsRetryableError to
decide whether an operation may be repeated.

# Example Usage

	cfg := ldap.DefaultConfig()
	cfg.LDAPURLs = []string{"ldap://localhost:389"}
	cfg.Username = "cn=admin,dc=example,dc=org"
	cfg.Password = "secret"

	client, err := ldap.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Add(ctx, &ldap.AddRequest{
		DN: "ou=people,dc=example,dc=org",
		Attributes: []ldap.Attribute{
			{Type: "objectClass", Values: []string{"organizationalUnit"}},
			{Type: "ou", Values: []string{"people"}},
		},
	})
*/
package ldap
