package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	CATEGORY_PRIMARY    = "primary"
	CATEGORY_BATTERY    = "battery"
	CATEGORY_SYSTEM     = "system"
	CATEGORY_DIAGNOSTIC = "diagnostic"
)

// HardwareUnit is one physical sensor unit registered on the gateway.
type HardwareUnit struct {
	HardwareId string
	SensorType string
	Name       string
	Channel    string
	Battery    string
	Signal     string
	Active     bool
	Synthetic  bool
}

// GatewayInfo is the resolved identity of the polled station.
type GatewayInfo struct {
	ConfigId string
	Host     string
	Model    string
	Firmware string
}

type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueInt
	ValueFloat
	ValueText
)

// Value is a normalized reading value. A None value means the source
// reported a sentinel or unparseable payload.
type Value struct {
	Kind ValueKind
	Num  float64
	Text string
}

func NoReading() Value {
	return Value{Kind: ValueNone}
}

func IntValue(v int64) Value {
	return Value{Kind: ValueInt, Num: float64(v)}
}

func FloatValue(v float64) Value {
	return Value{Kind: ValueFloat, Num: v}
}

func TextValue(v string) Value {
	return Value{Kind: ValueText, Text: v}
}

func (v Value) IsNone() bool {
	return v.Kind == ValueNone
}

// Payload renders the value as an MQTT state payload.
func (v Value) Payload() string {
	switch v.Kind {
	case ValueInt:
		return strconv.FormatInt(int64(v.Num), 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueText:
		return v.Text
	default:
		return ""
	}
}

// SensorReading is one assembled telemetry point keyed by entity key.
type SensorReading struct {
	EntityKey  string
	WireKey    string
	Name       string
	Value      Value
	Unit       string
	Category   string
	HardwareId string
	SensorType string
	Channel    string
	UpdatedAt  time.Time
}

// TelemetryCatalog is the full set of readings from one refresh cycle.
type TelemetryCatalog struct {
	Gateway   GatewayInfo
	Units     []HardwareUnit
	Readings  []SensorReading
	UpdatedAt time.Time
}

func (c *TelemetryCatalog) Reading(entityKey string) (SensorReading, bool) {
	for _, r := range c.Readings {
		if r.EntityKey == entityKey {
			return r, true
		}
	}
	return SensorReading{}, false
}

// MappingStats summarizes a mapping refresh for logs and responses.
type MappingStats struct {
	Units       int
	MappedKeys  int
	SensorTypes []string
}

func (s MappingStats) String() string {
	return fmt.Sprintf("units=%d keys=%d types=%s", s.Units, s.MappedKeys,
		strings.Join(s.SensorTypes, ","))
}

// IsSentinelHardwareId reports whether the id is one of the placeholder
// ids the gateway uses for unregistered or searching sensor slots.
func IsSentinelHardwareId(id string) bool {
	switch strings.ToUpper(strings.TrimSpace(id)) {
	case "", "FFFFFFFE", "FFFFFFFF", "00000000":
		return true
	}
	return false
}
