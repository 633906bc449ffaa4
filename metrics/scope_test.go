package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNoopScope_NeverErrors(t *testing.T) {
	s := NewNoopScope()
	assert.NoError(t, s.Inc("x", 1))
	assert.NoError(t, s.Gauge("x", 1))
	assert.NoError(t, s.GaugeDelta("x", -1))
	assert.NoError(t, s.Timing("x", 1))
	assert.NoError(t, s.SetInt("x", 1))
	assert.Equal(t, s, s.NewScope("child"))
}

func TestPromScope_PrefixesStatNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "pkd_test")

	assert.NoError(t, s.Inc("ticks_total", 1))
	assert.NoError(t, s.Gauge("queue_depth", 3))

	families, err := reg.Gather()
	assert.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pkd_test_ticks_total")
	assert.Contains(t, names, "pkd_test_queue_depth")
}

func TestPromScope_NewScopeAppendsPrefix(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "pkd_test")
	child := s.NewScope("reconcile")

	assert.NoError(t, child.Inc("errors_total", 1))

	families, err := reg.Gather()
	assert.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "pkd_test_reconcile_errors_total" {
			found = true
		}
	}
	assert.True(t, found)
}
