// Package config loads the ldapfill application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/hashicorp/go-hclog"

	"github.com/isometry/ldapfill/internal/ldap"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/ldapfill.toml"

// Config is the application configuration. Zero values are replaced by the
// default tags when loaded.
type Config struct {
	Log      string   `toml:"log" default:"info"`
	Defaults Defaults `toml:"defaults"`
	LDAP     LDAP     `toml:"ldap"`
	Export   Export   `toml:"export"`
	Queries  Queries  `toml:"queries"`
}

// Defaults are the generation settings used by every command.
type Defaults struct {
	FormatFile string `toml:"format_file" default:"format.toml"`
	Base       string `toml:"base"`
	Seed       uint64 `toml:"seed"` // 0 picks a random seed
	Workers    int    `toml:"workers" default:"1"`
}

// LDAP configures the directory server used by insert and query verification.
type LDAP struct {
	URLs        []string      `toml:"urls"`
	BindDN      string        `toml:"bind_dn"`
	Password    string        `toml:"password"`
	Connections int           `toml:"connections" default:"4"`
	UseTLS      bool          `toml:"use_tls"`
	CACertFile  string        `toml:"ca_cert_file"`
	Timeout     time.Duration `toml:"timeout" default:"30s"`
	MaxRetries  int           `toml:"max_retries" default:"3"`

	KerberosRealm  string `toml:"kerberos_realm"`
	KerberosKeytab string `toml:"kerberos_keytab"`
	KerberosConfig string `toml:"kerberos_config"`
	KerberosCCache string `toml:"kerberos_ccache"`
	KerberosSPN    string `toml:"kerberos_spn"`
}

// Export names the export targets. Empty targets are skipped.
type Export struct {
	LDIF   string `toml:"ldif"`
	CSVDir string `toml:"csv_dir"`
	SQLite string `toml:"sqlite"`
}

// Queries configures the query generator.
type Queries struct {
	Count               int                `toml:"count"`
	Output              string             `toml:"output" default:"queries.csv"`
	NoResultProbability float64            `toml:"no_result_probability" default:"0.1"`
	Verify              bool               `toml:"verify"`
	Filters             []Filter           `toml:"filter"`
	BaseWeights         map[string]float64 `toml:"base_weights"`
}

// Filter is one weighted filter template.
type Filter struct {
	Template    string  `toml:"template"`
	ObjectClass string  `toml:"object_class"`
	Scope       string  `toml:"scope" default:"sub"`
	Weight      float64 `toml:"weight" default:"1"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("invalid default tags: %v", err))
	}
	return cfg
}

// Load reads the TOML file at path on top of the defaults. A missing file
// yields an error matching fs.ErrNotExist.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		var perr toml.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("cannot parse config file %s:\n%s", path, perr.ErrorWithPosition())
		}
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	for i := range cfg.Queries.Filters {
		if err := defaults.Set(&cfg.Queries.Filters[i]); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed by types alone.
func (c *Config) Validate() error {
	var errs []error

	if hclog.LevelFromString(c.Log) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log))
	}
	if c.Defaults.Workers < 1 {
		errs = append(errs, fmt.Errorf("defaults.workers must be at least 1, got %d", c.Defaults.Workers))
	}
	if c.Defaults.Base != "" {
		if err := ldap.ValidateDNSyntax(c.Defaults.Base); err != nil {
			errs = append(errs, fmt.Errorf("defaults.base: %w", err))
		}
	}
	if c.LDAP.Connections < 1 || c.LDAP.Connections > ldap.MaxConnectionPoolLimit {
		errs = append(errs, fmt.Errorf("ldap.connections must be between 1 and %d, got %d", ldap.MaxConnectionPoolLimit, c.LDAP.Connections))
	}
	for _, u := range c.LDAP.URLs {
		if _, err := ldap.ParseLDAPURL(u); err != nil {
			errs = append(errs, fmt.Errorf("ldap.urls: %w", err))
		}
	}
	if c.Queries.Count < 0 {
		errs = append(errs, fmt.Errorf("queries.count cannot be negative"))
	}
	if p := c.Queries.NoResultProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("queries.no_result_probability must be within [0, 1], got %g", p))
	}
	for i, f := range c.Queries.Filters {
		if f.Template == "" {
			errs = append(errs, fmt.Errorf("queries.filter[%d]: template is required", i))
		}
		if f.Weight < 0 {
			errs = append(errs, fmt.Errorf("queries.filter[%d]: weight cannot be negative", i))
		}
	}
	for class, w := range c.Queries.BaseWeights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("queries.base_weights.%s cannot be negative", class))
		}
	}

	return errors.Join(errs...)
}

// Environment variables consulted by ApplyEnv.
const (
	EnvURLs          = "LDAPFILL_LDAP_URLS"
	EnvBindDN        = "LDAPFILL_BIND_DN"
	EnvPassword      = "LDAPFILL_PASSWORD"
	EnvKerberosRealm = "LDAPFILL_KERBEROS_REALM"
)

// ApplyEnv fills unset [ldap] values from the environment. Values from the
// file always win. URLs may be comma separated.
func (c *Config) ApplyEnv() {
	if len(c.LDAP.URLs) == 0 {
		for _, u := range strings.Split(os.Getenv(EnvURLs), ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.LDAP.URLs = append(c.LDAP.URLs, u)
			}
		}
	}
	c.LDAP.BindDN = stringValue(c.LDAP.BindDN, EnvBindDN)
	c.LDAP.Password = stringValue(c.LDAP.Password, EnvPassword)
	c.LDAP.KerberosRealm = stringValue(c.LDAP.KerberosRealm, EnvKerberosRealm)
}

func stringValue(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}

// ConnectionConfig translates the [ldap] table into pool settings.
func (c *Config) ConnectionConfig() *ldap.ConnectionConfig {
	cc := ldap.DefaultConfig()
	cc.LDAPURLs = c.LDAP.URLs
	cc.Username = c.LDAP.BindDN
	cc.Password = c.LDAP.Password
	cc.MaxConnections = c.LDAP.Connections
	cc.UseTLS = c.LDAP.UseTLS
	cc.TLSCACertFile = c.LDAP.CACertFile
	cc.Timeout = c.LDAP.Timeout
	cc.MaxRetries = c.LDAP.MaxRetries
	cc.KerberosRealm = c.LDAP.KerberosRealm
	cc.KerberosKeytab = c.LDAP.KerberosKeytab
	cc.KerberosConfig = c.LDAP.KerberosConfig
	cc.KerberosCCache = c.LDAP.KerberosCCache
	cc.KerberosSPN = c.LDAP.KerberosSPN
	return cc
}
