package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tfsdklog"
)

// logSubsystems are the components that log through their own subsystem.
var logSubsystems = []string{"format", "source", "generator", "export", "query", "ldap"}

// newLogContext installs the root logger and one subsystem logger per
// component. Each subsystem can be raised or lowered on its own with
// LDAPFILL_LOG_<SUBSYSTEM>.
func newLogContext(ctx context.Context, level hclog.Level) context.Context {
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	ctx = tfsdklog.NewRootProviderLogger(ctx,
		tfsdklog.WithLogName("ldapfill"),
		tfsdklog.WithLevel(level),
		tfsdklog.WithoutLocation(),
	)
	for _, name := range logSubsystems {
		opt := tflog.WithLevel(level)
		if os.Getenv(subsystemEnv(name)) != "" {
			opt = tflog.WithLevelFromEnv("LDAPFILL_LOG", name)
		}
		ctx = tflog.NewSubsystem(ctx, name, opt)
	}
	return ctx
}

func subsystemEnv(name string) string {
	return "LDAPFILL_LOG_" + strings.ToUpper(name)
}
