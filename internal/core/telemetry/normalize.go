package telemetry

import (
	"regexp"
	"strconv"
	"strings"

	"ecowitt2mqtt/internal/core/domain"
)

// ValueClass selects the normalization rule for a raw reading.
type ValueClass int

const (
	ClassDefault ValueClass = iota
	// ClassBatteryCode is the 0..5 battery scale reported by most units.
	ClassBatteryCode
	// ClassSignalCode is the 0..4 RSSI scale from the mapping snapshot.
	ClassSignalCode
)

var numericWithUnit = regexp.MustCompile(`^([-+]?\d*\.?\d+)\s*([a-zA-Z%°/²³]+.*)?$`)

// Normalize converts a raw gateway string into a typed value. Sentinel
// strings become NoReading before any numeric parsing so "--" is never
// mis-parsed. Battery and signal scale conversion run before generic
// unit stripping so an already-percentage value is not rescaled.
func Normalize(raw string, class ValueClass) domain.Value {
	trimmed := strings.TrimSpace(raw)
	if isSentinel(trimmed) {
		return domain.NoReading()
	}

	switch class {
	case ClassBatteryCode:
		if code, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			if code >= 0 && code <= 5 {
				return domain.IntValue(code * 20)
			}
			// already a percentage
			return domain.IntValue(code)
		}
		return domain.TextValue(trimmed)
	case ClassSignalCode:
		if code, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			if code >= 0 && code <= 4 {
				return domain.IntValue(code * 25)
			}
			return domain.IntValue(code)
		}
		return domain.TextValue(trimmed)
	}

	match := numericWithUnit.FindStringSubmatch(trimmed)
	if match == nil {
		return domain.TextValue(trimmed)
	}
	num := match[1]
	if v, err := strconv.ParseInt(num, 10, 64); err == nil {
		return domain.IntValue(v)
	}
	if v, err := strconv.ParseFloat(num, 64); err == nil {
		return domain.FloatValue(v)
	}
	return domain.NoReading()
}

// isSentinel matches the placeholder tokens gateways emit for absent
// readings, plus any string that is only dashes, dots and whitespace.
func isSentinel(v string) bool {
	switch strings.ToLower(v) {
	case "", "null", "none", "n/a":
		return true
	}
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '.', ' ', '\t':
			return -1
		}
		return r
	}, v)
	return stripped == ""
}
