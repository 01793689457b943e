package mapper

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util"
	"ecowitt2mqtt/pkg/ecowitt"
)

// Mapper holds the hardware identity table for one gateway: which
// physical unit owns each wire key, and what is known about each unit.
type Mapper struct {
	mu    sync.RWMutex
	units map[string]domain.HardwareUnit
	keys  map[string]string
}

func NewMapper() *Mapper {
	return &Mapper{
		units: make(map[string]domain.HardwareUnit),
		keys:  make(map[string]string),
	}
}

// UpdateMapping replaces the full unit table and wire-key index in one
// atomic step. Entries with a sentinel hardware id are discarded.
// Synthetic units injected since the last rebuild are dropped; the
// telemetry cycle re-injects them on the next pass when still present.
func (m *Mapper) UpdateMapping(entries []ecowitt.RawMappingEntry) domain.MappingStats {
	units := make(map[string]domain.HardwareUnit)
	keys := make(map[string]string)

	for _, entry := range entries {
		if domain.IsSentinelHardwareId(entry.ID) {
			continue
		}
		unit := domain.HardwareUnit{
			HardwareId: strings.ToUpper(strings.TrimSpace(entry.ID)),
			SensorType: normalizeSensorType(entry.Img),
			Name:       entry.Name,
			Channel:    entry.Channel,
			Battery:    entry.Batt,
			Signal:     entry.Signal,
			Active:     entry.Signal != "" && entry.Signal != "0",
		}
		units[unit.HardwareId] = unit
		for _, key := range wireKeysFor(unit.SensorType, unit.Channel) {
			keys[key] = unit.HardwareId
		}
	}

	m.mu.Lock()
	m.units = units
	m.keys = keys
	stats := m.statsLocked()
	m.mu.Unlock()

	return stats
}

// InjectSyntheticUnit adds or overwrites one unit and its wire keys
// without touching the rest of the table. Idempotent per hardware id.
func (m *Mapper) InjectSyntheticUnit(unit domain.HardwareUnit, wireKeys []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit.HardwareId = strings.ToUpper(strings.TrimSpace(unit.HardwareId))
	unit.Synthetic = true
	if existing, ok := m.units[unit.HardwareId]; ok {
		// keep mapping-provided fields the caller left empty
		if unit.Name == "" {
			unit.Name = existing.Name
		}
		if unit.Channel == "" {
			unit.Channel = existing.Channel
		}
		if unit.Signal == "" {
			unit.Signal = existing.Signal
		}
	}
	m.units[unit.HardwareId] = unit
	for _, key := range wireKeys {
		m.keys[key] = unit.HardwareId
	}
}

// HardwareId resolves the unit owning a wire key.
func (m *Mapper) HardwareId(wireKey string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keys[wireKey]
	return id, ok
}

func (m *Mapper) Unit(hardwareId string) (domain.HardwareUnit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[strings.ToUpper(hardwareId)]
	return u, ok
}

// Units returns the known hardware units sorted by id.
func (m *Mapper) Units() []domain.HardwareUnit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	units := make([]domain.HardwareUnit, 0, len(m.units))
	for _, u := range m.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].HardwareId < units[j].HardwareId
	})
	return units
}

func (m *Mapper) Stats() domain.MappingStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

func (m *Mapper) statsLocked() domain.MappingStats {
	typeSet := make(map[string]bool)
	for _, u := range m.units {
		typeSet[u.SensorType] = true
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return domain.MappingStats{
		Units:       len(m.units),
		MappedKeys:  len(m.keys),
		SensorTypes: types,
	}
}

var entityKeySanitizer = regexp.MustCompile(`[^a-z0-9]+`)

// EntityKey derives the stable entity key and display name for a wire
// key. Hardware-owned keys embed the lowercase hardware id so entities
// survive channel re-registration. Gateway-owned keys are scoped by a
// hash of the gateway config id.
func EntityKey(wireKey, hardwareId, gatewayConfigId string) (string, string) {
	sanitized := entityKeySanitizer.ReplaceAllString(strings.ToLower(wireKey), "_")
	sanitized = strings.Trim(sanitized, "_")

	var key string
	if hardwareId != "" {
		key = fmt.Sprintf("ecowitt_%s_%s", sanitized, strings.ToLower(hardwareId))
	} else {
		key = fmt.Sprintf("ecowitt_%s_%s", util.Md5HashShort(gatewayConfigId), sanitized)
	}
	return key, displayName(wireKey)
}

func displayName(wireKey string) string {
	if meta, ok := domain.LookupWireKeyMeta(wireKey); ok {
		return meta.Name
	}
	parts := strings.FieldsFunc(strings.ToLower(wireKey), func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func normalizeSensorType(img string) string {
	t := strings.ToLower(strings.TrimSpace(img))
	if t == "" {
		return "unknown"
	}
	return t
}

// wireKeysFor lists the telemetry keys a unit of the given model owns.
// Unknown models own no keys and surface through diagnostics only.
func wireKeysFor(sensorType, channel string) []string {
	ch := strings.TrimSpace(channel)
	switch sensorType {
	case "wh51":
		if ch == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("soilmoisture%s", ch),
			fmt.Sprintf("soilbatt%s", ch),
		}
	case "wh31":
		if ch == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("temp%sf", ch),
			fmt.Sprintf("humidity%s", ch),
			fmt.Sprintf("batt%s", ch),
		}
	case "wh41", "wh43":
		if ch == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("pm25_ch%s", ch),
			fmt.Sprintf("pm25batt%s", ch),
		}
	case "wh55":
		if ch == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("leak_ch%s", ch),
			fmt.Sprintf("leakbatt%s", ch),
		}
	case "wh57":
		return []string{"lightning", "lightning_time", "lightning_num", "wh57batt"}
	case "wh40":
		return []string{
			"rainratein", "eventrainin", "dailyrainin", "weeklyrainin",
			"monthlyrainin", "yearlyrainin", "wh40batt",
		}
	case "wh68":
		return []string{
			"tempf", "humidity", "winddir", "windspeedmph", "windgustmph",
			"maxdailygust", "solarradiation", "uv", "wh68batt",
		}
	case "ws90", "wh90":
		return WS90WireKeys()
	default:
		return nil
	}
}

// WS90WireKeys lists the keys owned by an all-in-one WS90 station.
func WS90WireKeys() []string {
	keys := make([]string, 0, len(domain.WS90_SENSOR_KEYS))
	for k := range domain.WS90_SENSOR_KEYS {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
