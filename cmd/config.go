// Package cmd provides the small set of utilities every pkd-* daemon shares:
// a JSON config file loader, fail-fast startup helpers, signal handling, and
// a debug/metrics HTTP server, mirroring the teacher's own cmd package.
package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"
)

// Config stores every daemon's configuration parameters lumped into one
// struct, unmarshalled from a JSON file per service invocation. No defaults
// are provided here; each command fills in its own zero-value fallbacks.
type Config struct {
	Scheduler   SchedulerConfig
	Reconciler  ReconcilerConfig
	Revalidator RevalidatorConfig
	PAVerifier  PAVerifierConfig

	DB      DBConfig
	LDAP    LDAPConfig
	Redis   RedisConfig
	Syslog  SyslogConfig
	Tracing TracingConfig
}

// ServiceConfig holds fields common to every long-running daemon.
type ServiceConfig struct {
	DebugAddr string
}

// DBConfig is the MySQL connection used by every daemon through package store.
type DBConfig struct {
	DBConnect ConfigSecret
}

// LDAPConfig is the read/write LDAP endpoint configuration shared by
// package trust (reads) and package reconcile (writes).
type LDAPConfig struct {
	ReadURL      string
	WriteURL     string
	BindDN       string
	BindPassword ConfigSecret
	BaseDN       string
	DialTimeout  ConfigDuration
	SearchLimit  int
}

// RedisConfig configures the read-through CSCA cache in package trust.
type RedisConfig struct {
	Addr     string
	Password ConfigSecret
	DB       int
	TTL      ConfigDuration
}

// SchedulerConfig configures the daily wall-clock trigger (spec §4.8).
type SchedulerConfig struct {
	ServiceConfig
	TriggerQueueDataDir string
}

// ReconcilerConfig configures one reconciliation run (spec §4.6).
type ReconcilerConfig struct {
	ServiceConfig
	MaxReconcileBatchSize int
}

// RevalidatorConfig configures one revalidation sweep (spec §4.7).
type RevalidatorConfig struct {
	ServiceConfig
}

// PAVerifierConfig configures the Passive Authentication engine (spec §4.3).
type PAVerifierConfig struct {
	ServiceConfig
	ListenAddress string
}

// SyslogConfig defines the config for syslogging, identical in shape to the
// teacher's own SyslogConfig.
type SyslogConfig struct {
	Network     string
	Server      string
	StdoutLevel *int
	SyslogLevel int
}

// TracingConfig holds tracing settings. No daemon reads it: package pa's
// spans go to the global OpenTelemetry tracer provider, and no exporter is
// installed.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

// ConfigDuration is an alias for time.Duration that also unmarshals from a
// JSON string, the same convenience type the teacher carries.
type ConfigDuration struct {
	time.Duration
}

// ErrDurationMustBeString is returned when a non-string value is presented
// to be deserialized as a ConfigDuration.
var ErrDurationMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigDuration")

func (d *ConfigDuration) UnmarshalJSON(b []byte) error {
	s := ""
	if err := json.Unmarshal(b, &s); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return ErrDurationMustBeString
		}
		return err
	}
	dd, err := time.ParseDuration(s)
	d.Duration = dd
	return err
}

func (d ConfigDuration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Duration.String() + `"`), nil
}

// ConfigSecret is a string-valued config field. If its value starts with
// "secret:", the remainder is treated as a file path whose trimmed contents
// become the real value, the same indirection the teacher uses to keep
// passwords out of checked-in config files.
type ConfigSecret string

var errSecretMustBeString = errors.New("cannot JSON unmarshal something other than a string into a ConfigSecret")

const secretPrefix = "secret:"

func (d *ConfigSecret) UnmarshalJSON(b []byte) error {
	s := ""
	if err := json.Unmarshal(b, &s); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			return errSecretMustBeString
		}
		return err
	}
	if !strings.HasPrefix(s, secretPrefix) {
		*d = ConfigSecret(s)
		return nil
	}
	contents, err := os.ReadFile(s[len(secretPrefix):])
	if err != nil {
		return err
	}
	*d = ConfigSecret(strings.TrimRight(string(contents), "\n"))
	return nil
}

// String returns the resolved secret value.
func (d ConfigSecret) String() string {
	return string(d)
}
