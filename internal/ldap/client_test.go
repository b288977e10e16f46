package ldap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
)

type stubPool struct {
	closed bool
	gets   int
}

func (p *stubPool) Get(context.Context) (*PooledConnection, error) {
	p.gets++
	return nil, errors.New("stub pool has no connections")
}

func (p *stubPool) Close() error {
	p.closed = true
	return nil
}

func (p *stubPool) Stats() PoolStats {
	return PoolStats{Created: 3, Errors: 1}
}

func newStubClient(config *ConnectionConfig) (*client, *stubPool) {
	pool := &stubPool{}
	return &client{pool: pool, config: config}, pool
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *ConnectionConfig
		wantErr bool
	}{
		{
			name:   "default config with URLs",
			config: testConfig("ldaps://ldap.example.org:636"),
		},
		{
			name: "explicit config",
			config: &ConnectionConfig{
				LDAPURLs:       []string{"ldap://ldap.example.org"},
				MaxConnections: 8,
				MaxIdleTime:    2 * time.Minute,
				Timeout:        15 * time.Second,
				MaxRetries:     2,
				BackoffFactor:  1.5,
				UseTLS:         true,
			},
		},
		{
			name:    "nil config has no URLs",
			config:  nil,
			wantErr: true,
		},
		{
			name: "bad max connections",
			config: func() *ConnectionConfig {
				c := testConfig("ldap://ldap.example.org")
				c.MaxConnections = 0
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(t.Context(), tt.config)
			if tt.wantErr {
				if err == nil {
					t.Error("NewClient() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient() unexpected error: %v", err)
			}
			if err := c.Close(); err != nil {
				t.Errorf("Close() error: %v", err)
			}
		})
	}
}

func TestClient_CloseAndStats(t *testing.T) {
	c, pool := newStubClient(DefaultConfig())

	if got := c.Stats(); got.Created != 3 || got.Errors != 1 {
		t.Errorf("Stats() = %+v", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !pool.closed {
		t.Error("Close() did not close the pool")
	}
}

func TestClient_AddValidation(t *testing.T) {
	c, pool := newStubClient(DefaultConfig())

	if err := c.Add(t.Context(), nil); err == nil {
		t.Error("Add(nil) should fail")
	}
	if err := c.Add(t.Context(), &AddRequest{}); err == nil || !strings.Contains(err.Error(), "DN cannot be empty") {
		t.Errorf("Add() without DN error = %v", err)
	}
	if pool.gets != 0 {
		t.Errorf("invalid requests acquired %d connections", pool.gets)
	}

	err := c.Add(t.Context(), &AddRequest{DN: "ou=people,dc=example,dc=org"})
	if err == nil || !strings.Contains(err.Error(), "failed to get connection") {
		t.Errorf("Add() error = %v", err)
	}
}

func TestClient_SearchValidation(t *testing.T) {
	c, _ := newStubClient(DefaultConfig())

	if _, err := c.Search(t.Context(), nil); err == nil {
		t.Error("Search(nil) should fail")
	}
	if _, err := c.Search(t.Context(), &SearchRequest{BaseDN: "dc=example,dc=org", Filter: "(objectClass=*)"}); err == nil {
		t.Error("Search() without connections should fail")
	}
}

func TestClient_IsRetryableError(t *testing.T) {
	c, _ := newStubClient(DefaultConfig())

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"busy", ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), true},
		{"unavailable", ldap.NewError(ldap.LDAPResultUnavailable, errors.New("down")), true},
		{"already exists", ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists")), false},
		{"retryable connection error", NewConnectionError("reset", true, nil), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other", errors.New("invalid filter"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClient_WithRetry(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.InitialBackoff = time.Millisecond
	config.MaxBackoff = 2 * time.Millisecond
	c, _ := newStubClient(config)

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := c.withRetry(t.Context(), func() error {
			calls++
			if calls < 3 {
				return ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("withRetry() error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		permanent := ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists"))
		err := c.withRetry(t.Context(), func() error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("withRetry() error = %v, want %v", err, permanent)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.withRetry(t.Context(), func() error {
			calls++
			return ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))
		})
		if err == nil {
			t.Fatal("withRetry() expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		if IsRetryableError(err) {
			t.Error("exhausted retries should not be retryable again")
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		slow := DefaultConfig()
		slow.InitialBackoff = time.Hour
		sc, _ := newStubClient(slow)

		calls := 0
		err := sc.withRetry(ctx, func() error {
			calls++
			return ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("withRetry() error = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}
