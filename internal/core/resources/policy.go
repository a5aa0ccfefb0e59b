// Package resources computes effective per-container resource limits from
// global limits, per-container overrides, and scale factors. It is pure
// computation with no I/O.
package resources

import (
	"strconv"
	"strings"
)

// =============================================================================
// Policy
// =============================================================================

// Policy holds the resource sizing rules for a strategy.
//
// Values are kept as strings so the policy can carry both plain numeric
// limits (e.g. cpus "1.5") and size-suffixed limits (e.g. memory "512m")
// without committing to a unit at definition time. Parsing into runtime
// units happens at container-creation time.
type Policy struct {
	GlobalLimits       map[string]string            `json:"global_limits,omitempty" yaml:"global_limits,omitempty"`
	ContainerOverrides map[string]map[string]string `json:"container_overrides,omitempty" yaml:"container_overrides,omitempty"`
	ScaleFactors       map[string]float64           `json:"scale_factors,omitempty" yaml:"scale_factors,omitempty"`
}

// NewPolicy creates an empty policy.
func NewPolicy() Policy {
	return Policy{
		GlobalLimits:       make(map[string]string),
		ContainerOverrides: make(map[string]map[string]string),
		ScaleFactors:       make(map[string]float64),
	}
}

// SetGlobalLimit sets a global resource limit. Replaces any previous value.
func (p *Policy) SetGlobalLimit(resource, value string) {
	if p.GlobalLimits == nil {
		p.GlobalLimits = make(map[string]string)
	}
	p.GlobalLimits[resource] = value
}

// SetContainerOverride sets a per-container resource limit that replaces the
// global value for that resource.
func (p *Policy) SetContainerOverride(container, resource, value string) {
	if p.ContainerOverrides == nil {
		p.ContainerOverrides = make(map[string]map[string]string)
	}
	if p.ContainerOverrides[container] == nil {
		p.ContainerOverrides[container] = make(map[string]string)
	}
	p.ContainerOverrides[container][resource] = value
}

// SetScaleFactor sets the multiplier applied to the named container's
// resource values after the override merge.
func (p *Policy) SetScaleFactor(container string, factor float64) {
	if p.ScaleFactors == nil {
		p.ScaleFactors = make(map[string]float64)
	}
	p.ScaleFactors[container] = factor
}

// EffectiveLimits computes the resource limits for a container: global
// limits, overlaid with any per-container overrides (full key replacement),
// then scaled by the container's scale factor if one is set.
//
// Scaling multiplies plain numeric values directly and multiplies the
// numeric portion of size-suffixed values while preserving the suffix.
// Values that parse as neither pass through unscaled; this function never
// fails.
func (p *Policy) EffectiveLimits(container string) map[string]string {
	limits := make(map[string]string, len(p.GlobalLimits))
	for resource, value := range p.GlobalLimits {
		limits[resource] = value
	}
	for resource, value := range p.ContainerOverrides[container] {
		limits[resource] = value
	}

	factor, ok := p.ScaleFactors[container]
	if !ok {
		return limits
	}
	for resource, value := range limits {
		limits[resource] = scaleValue(value, factor)
	}
	return limits
}

// scaleValue multiplies the numeric portion of value by factor, preserving
// any trailing unit suffix. Unparseable values are returned unchanged.
func scaleValue(value string, factor float64) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}

	// Split numeric prefix from unit suffix.
	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			split = i
			break
		}
	}
	numPart, suffix := trimmed[:split], trimmed[split:]

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return value
	}

	// -1 precision drops trailing zeros, so integers stay integral
	// ("512" rather than "512.000000").
	return strconv.FormatFloat(num*factor, 'f', -1, 64) + suffix
}

// =============================================================================
// Limit Parsing Helpers
// =============================================================================

// ParseCPUs parses a CPU limit value such as "1.5" into a core count.
func ParseCPUs(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseBytes parses a size value such as "512m", "2g" or a plain byte count
// into bytes. Suffixes are case-insensitive: b, k, m, g, t.
func ParseBytes(value string) (int64, bool) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return 0, false
	}

	multiplier := int64(1)
	switch trimmed[len(trimmed)-1] {
	case 'b':
		trimmed = trimmed[:len(trimmed)-1]
	case 'k':
		multiplier = 1 << 10
		trimmed = trimmed[:len(trimmed)-1]
	case 'm':
		multiplier = 1 << 20
		trimmed = trimmed[:len(trimmed)-1]
	case 'g':
		multiplier = 1 << 30
		trimmed = trimmed[:len(trimmed)-1]
	case 't':
		multiplier = 1 << 40
		trimmed = trimmed[:len(trimmed)-1]
	}

	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || num < 0 {
		return 0, false
	}
	return int64(num * float64(multiplier)), true
}
