package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pkd-core/core"
)

func validOptions() Options {
	return Options{
		DailySyncHour:         2,
		DailySyncMinute:       30,
		MaxReconcileBatchSize: 500,
		LdapReadHost:          "ldap-read.example.org",
		LdapReadPort:          389,
		LdapWriteHost:         "ldap-write.example.org",
		LdapWritePort:         389,
		LdapBindDN:            "cn=admin,dc=example,dc=org",
		LdapBaseDN:            "dc=pkd,dc=example,dc=org",
		DBHost:                "db.example.org",
		DBPort:                3306,
		DBName:                "pkd",
		DBUser:                "pkd",
	}
}

func TestOptions_Validate_OK(t *testing.T) {
	assert.NoError(t, validOptions().Validate())
}

func TestOptions_Validate_HourOutOfRange(t *testing.T) {
	o := validOptions()
	o.DailySyncHour = 24
	assert.Error(t, o.Validate())
}

func TestOptions_Validate_MinuteOutOfRange(t *testing.T) {
	o := validOptions()
	o.DailySyncMinute = 60
	assert.Error(t, o.Validate())
}

func TestOptions_Validate_BatchSizeMustBePositive(t *testing.T) {
	o := validOptions()
	o.MaxReconcileBatchSize = 0
	assert.Error(t, o.Validate())
}

func TestOptions_Validate_MissingHostFails(t *testing.T) {
	o := validOptions()
	o.DBHost = ""
	assert.Error(t, o.Validate())
}

func TestOverlaySyncConfig_NilRowIsNoop(t *testing.T) {
	o := validOptions()
	got := overlaySyncConfig(o, nil)
	assert.Equal(t, o, got)
}

func TestOverlaySyncConfig_AppliesMutableFields(t *testing.T) {
	o := validOptions()
	row := &core.SyncConfig{
		ID:                    1,
		DailySyncEnabled:      false,
		DailySyncHour:         5,
		DailySyncMinute:       45,
		AutoReconcile:         false,
		RevalidateCertsOnSync: false,
		MaxReconcileBatchSize: 200,
	}
	got := overlaySyncConfig(o, row)
	assert.False(t, got.DailySyncEnabled)
	assert.Equal(t, 5, got.DailySyncHour)
	assert.Equal(t, 45, got.DailySyncMinute)
	assert.Equal(t, 200, got.MaxReconcileBatchSize)
	// LDAP/DB endpoints stay env-sourced, untouched by the DB row.
	assert.Equal(t, o.LdapReadHost, got.LdapReadHost)
	assert.Equal(t, o.DBHost, got.DBHost)
}

func TestStore_UpdateValidatesAndAppliesOnApply(t *testing.T) {
	var applied Options
	var applyCount int
	s := &Store{current: validOptions(), onApply: func(o Options) {
		applied = o
		applyCount++
	}}

	next := validOptions()
	next.DailySyncHour = 10
	require.NoError(t, s.Update(context.Background(), next))

	assert.Equal(t, 1, applyCount)
	assert.Equal(t, 10, applied.DailySyncHour)
	assert.Equal(t, 10, s.Current().DailySyncHour)
}

func TestStore_UpdateRejectsInvalidOptions(t *testing.T) {
	s := &Store{current: validOptions()}
	bad := validOptions()
	bad.DailySyncHour = -1
	err := s.Update(context.Background(), bad)
	assert.Error(t, err)
	assert.Equal(t, 2, s.Current().DailySyncHour)
}
