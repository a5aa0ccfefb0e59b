package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// EffectiveLimits Tests
// =============================================================================

func TestEffectiveLimits_GlobalsOnly(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("cpus", "1.0")
	p.SetGlobalLimit("memory", "512m")

	limits := p.EffectiveLimits("web")

	assert.Equal(t, map[string]string{"cpus": "1.0", "memory": "512m"}, limits)
}

func TestEffectiveLimits_OverrideReplacesKey(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("cpus", "1.0")
	p.SetGlobalLimit("memory", "512m")
	p.SetContainerOverride("db", "memory", "2g")

	limits := p.EffectiveLimits("db")

	// memory replaced wholesale, cpus inherited from globals
	assert.Equal(t, "2g", limits["memory"])
	assert.Equal(t, "1.0", limits["cpus"])

	// other containers are unaffected
	assert.Equal(t, "512m", p.EffectiveLimits("web")["memory"])
}

func TestEffectiveLimits_ScaleNumeric(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("cpus", "2")
	p.SetScaleFactor("worker", 1.5)

	limits := p.EffectiveLimits("worker")

	assert.Equal(t, "3", limits["cpus"])
}

func TestEffectiveLimits_ScalePreservesSuffix(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("memory", "512m")
	p.SetScaleFactor("db", 2.0)

	limits := p.EffectiveLimits("db")

	assert.Equal(t, "1024m", limits["memory"])
}

func TestEffectiveLimits_ScaleFractionalSuffix(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("memory", "1.5g")
	p.SetScaleFactor("db", 2.0)

	assert.Equal(t, "3g", p.EffectiveLimits("db")["memory"])
}

func TestEffectiveLimits_UnparseablePassesThrough(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("gpu", "nvidia-a100")
	p.SetGlobalLimit("cpus", "2")
	p.SetScaleFactor("ml", 3.0)

	limits := p.EffectiveLimits("ml")

	assert.Equal(t, "nvidia-a100", limits["gpu"], "non-numeric values are never scaled")
	assert.Equal(t, "6", limits["cpus"])
}

func TestEffectiveLimits_ScaleFactorOneIsIdentity(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("cpus", "1.5")
	p.SetGlobalLimit("memory", "512m")
	p.SetContainerOverride("web", "memory", "256m")

	unscaled := p.EffectiveLimits("web")

	p.SetScaleFactor("web", 1.0)
	scaled := p.EffectiveLimits("web")

	assert.Equal(t, unscaled, scaled)
}

func TestEffectiveLimits_Idempotent(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("memory", "512m")
	p.SetScaleFactor("web", 2.0)

	first := p.EffectiveLimits("web")
	second := p.EffectiveLimits("web")

	assert.Equal(t, first, second)
	assert.Equal(t, "512m", p.GlobalLimits["memory"], "policy inputs are never mutated")
}

func TestSetters_ReplaceIdempotently(t *testing.T) {
	p := NewPolicy()
	p.SetGlobalLimit("cpus", "1")
	p.SetGlobalLimit("cpus", "2")
	p.SetContainerOverride("web", "cpus", "3")
	p.SetContainerOverride("web", "cpus", "4")
	p.SetScaleFactor("web", 2)
	p.SetScaleFactor("web", 3)

	assert.Equal(t, "2", p.GlobalLimits["cpus"])
	assert.Equal(t, "4", p.ContainerOverrides["web"]["cpus"])
	assert.Equal(t, 3.0, p.ScaleFactors["web"])
}

func TestEffectiveLimits_ZeroValuePolicy(t *testing.T) {
	// A zero-value Policy (e.g. decoded from JSON with empty maps omitted)
	// must still work.
	var p Policy
	assert.Empty(t, p.EffectiveLimits("web"))
}

// =============================================================================
// scaleValue Tests
// =============================================================================

func TestScaleValue(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		factor   float64
		expected string
	}{
		{"plain integer", "100", 2, "200"},
		{"plain float", "1.5", 2, "3"},
		{"suffix m", "512m", 0.5, "256m"},
		{"suffix g", "2g", 1.5, "3g"},
		{"multi-letter suffix", "512mb", 2, "1024mb"},
		{"fractional result", "1m", 1.5, "1.5m"},
		{"empty", "", 2, ""},
		{"non-numeric", "lots", 2, "lots"},
		{"suffix only", "mb", 2, "mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scaleValue(tt.value, tt.factor))
		})
	}
}

// =============================================================================
// Parse Helper Tests
// =============================================================================

func TestParseCPUs(t *testing.T) {
	v, ok := ParseCPUs("1.5")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = ParseCPUs("many")
	assert.False(t, ok)

	_, ok = ParseCPUs("-1")
	assert.False(t, ok)
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		value    string
		expected int64
		ok       bool
	}{
		{"512", 512, true},
		{"1k", 1024, true},
		{"512m", 512 * 1 << 20, true},
		{"2G", 2 * 1 << 30, true},
		{"1.5g", 1610612736, true},
		{"100b", 100, true},
		{"", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			v, ok := ParseBytes(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, v)
			}
		})
	}
}
