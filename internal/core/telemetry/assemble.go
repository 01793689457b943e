package telemetry

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/core/mapper"
	"ecowitt2mqtt/pkg/ecowitt"
)

type wirePair struct {
	key string
	raw string
}

// Assemble flattens a live telemetry payload into the reading catalog.
// Identity resolution and value normalization failures are isolated per
// reading and never abort the rest of the batch.
func Assemble(live *ecowitt.LiveData, m *mapper.Mapper, gateway domain.GatewayInfo,
	includeInactive bool, now time.Time) *domain.TelemetryCatalog {

	pairs, ws90 := flatten(live)

	if ws90 != nil {
		injectWS90Unit(m, ws90)
	}

	readings := make([]domain.SensorReading, 0, len(pairs))
	seenUnits := make(map[string]bool)

	for _, p := range pairs {
		if p.key == "" {
			continue
		}
		if p.raw == "" && !includeInactive {
			continue
		}

		var hardwareId string
		mappedId, hasMapping := m.HardwareId(p.key)
		if !domain.IsGatewaySensor(p.key, ws90 != nil, hasMapping) {
			hardwareId = mappedId
		}

		entityKey, name := mapper.EntityKey(p.key, hardwareId, gateway.ConfigId)

		class := ClassDefault
		category := domain.CATEGORY_PRIMARY
		if domain.IsBatteryKey(p.key) {
			class = ClassBatteryCode
			category = domain.CATEGORY_BATTERY
		} else if domain.IsSystemKey(p.key) {
			category = domain.CATEGORY_SYSTEM
		}

		reading := domain.SensorReading{
			EntityKey:  entityKey,
			WireKey:    p.key,
			Name:       name,
			Value:      Normalize(p.raw, class),
			Category:   category,
			HardwareId: hardwareId,
			UpdatedAt:  now,
		}
		if meta, ok := domain.LookupWireKeyMeta(p.key); ok {
			reading.Unit = meta.Unit
		}
		if unit, ok := m.Unit(hardwareId); hardwareId != "" && ok {
			reading.SensorType = unit.SensorType
			reading.Channel = unit.Channel
			seenUnits[unit.HardwareId] = true
		}
		readings = append(readings, reading)
	}

	readings = append(readings, diagnosticReadings(m, seenUnits, gateway.ConfigId, now)...)

	return &domain.TelemetryCatalog{
		Gateway:   gateway,
		Units:     m.Units(),
		Readings:  readings,
		UpdatedAt: now,
	}
}

// flatten unifies every payload section into (wire key, raw value)
// pairs. Sections with per-channel structure synthesize their keys from
// the channel number. Returns WS90 metadata when the rain section
// carries the battery and version fields that signal its presence.
func flatten(live *ecowitt.LiveData) ([]wirePair, *ecowitt.LiveDataItem) {
	var pairs []wirePair

	for _, item := range live.CommonList {
		pairs = append(pairs, wirePair{key: item.ID, raw: item.Val})
	}

	if len(live.WH25) > 0 {
		indoor := live.WH25[0]
		pairs = append(pairs,
			wirePair{key: "tempinf", raw: indoor.InTemp},
			wirePair{key: "humidityin", raw: stripSuffixes(indoor.InHumi)},
			wirePair{key: "baromabsin", raw: stripSuffixes(indoor.Abs)},
			wirePair{key: "baromrelin", raw: stripSuffixes(indoor.Rel)},
		)
	}

	for _, ch := range live.Soil {
		if ch.Channel == "" {
			continue
		}
		pairs = append(pairs,
			wirePair{key: fmt.Sprintf("soilmoisture%s", ch.Channel), raw: stripSuffixes(ch.Humidity)},
			wirePair{key: fmt.Sprintf("soilbatt%s", ch.Channel), raw: ch.Battery},
		)
	}

	var ws90 *ecowitt.LiveDataItem
	for i, item := range live.PiezoRain {
		pairs = append(pairs, wirePair{key: item.ID, raw: item.Val})
		if item.Battery != "" && item.WS90Version != "" {
			ws90 = &live.PiezoRain[i]
			pairs = append(pairs, wirePair{key: "ws90batt", raw: item.Battery})
		}
	}

	for _, ch := range live.Aisle {
		if ch.Channel == "" {
			continue
		}
		pairs = append(pairs,
			wirePair{key: fmt.Sprintf("temp%sf", ch.Channel), raw: ch.Temp},
			wirePair{key: fmt.Sprintf("humidity%s", ch.Channel), raw: stripSuffixes(ch.Humidity)},
			wirePair{key: fmt.Sprintf("batt%s", ch.Channel), raw: ch.Battery},
		)
	}

	return pairs, ws90
}

// injectWS90Unit resolves a stable identity for a detected all-in-one
// station and registers its wire keys. A mapping entry already listed
// as wh90/ws90 is reused; otherwise the id is derived from the firmware
// version suffix as a best-effort fallback.
func injectWS90Unit(m *mapper.Mapper, meta *ecowitt.LiveDataItem) {
	hardwareId := ""
	signal := ""
	for _, u := range m.Units() {
		if u.SensorType == "wh90" || u.SensorType == "ws90" {
			hardwareId = u.HardwareId
			break
		}
	}
	if hardwareId == "" {
		// No mapping entry means no reported RSSI; assume full signal.
		signal = "4"
		if v := strings.TrimSpace(meta.WS90Version); len(v) >= 3 {
			hardwareId = "D" + v[len(v)-3:]
		} else {
			hardwareId = "WS90_DEFAULT"
		}
	}

	m.InjectSyntheticUnit(domain.HardwareUnit{
		HardwareId: hardwareId,
		SensorType: "ws90",
		Name:       "WS90 Weather Station",
		Battery:    meta.Battery,
		Signal:     signal,
		Active:     true,
	}, mapper.WS90WireKeys())
}

func diagnosticReadings(m *mapper.Mapper, seen map[string]bool, configId string,
	now time.Time) []domain.SensorReading {

	var readings []domain.SensorReading
	for _, unit := range m.Units() {
		if !seen[unit.HardwareId] {
			continue
		}
		signalKey, _ := mapper.EntityKey("signal", unit.HardwareId, configId)
		hwKey, _ := mapper.EntityKey("hardware_id", unit.HardwareId, configId)
		chKey, _ := mapper.EntityKey("channel", unit.HardwareId, configId)
		readings = append(readings,
			domain.SensorReading{
				EntityKey:  signalKey,
				WireKey:    "signal",
				Name:       "Signal",
				Value:      Normalize(unit.Signal, ClassSignalCode),
				Unit:       "%",
				Category:   domain.CATEGORY_DIAGNOSTIC,
				HardwareId: unit.HardwareId,
				SensorType: unit.SensorType,
				Channel:    unit.Channel,
				UpdatedAt:  now,
			},
			domain.SensorReading{
				EntityKey:  hwKey,
				WireKey:    "hardware_id",
				Name:       "Hardware ID",
				Value:      domain.TextValue(unit.HardwareId),
				Category:   domain.CATEGORY_DIAGNOSTIC,
				HardwareId: unit.HardwareId,
				SensorType: unit.SensorType,
				Channel:    unit.Channel,
				UpdatedAt:  now,
			},
			domain.SensorReading{
				EntityKey:  chKey,
				WireKey:    "channel",
				Name:       "Channel",
				Value:      domain.TextValue(unit.Channel),
				Category:   domain.CATEGORY_DIAGNOSTIC,
				HardwareId: unit.HardwareId,
				SensorType: unit.SensorType,
				Channel:    unit.Channel,
				UpdatedAt:  now,
			},
		)
	}
	return readings
}

var gatewayModelRegexp = regexp.MustCompile(`^(GW\w+)`)

// GatewayModel extracts the station model from a firmware string like
// "GW1100A_V2.4.3". Falls back to the reported station type, then to
// "Unknown".
func GatewayModel(firmware, stationType string) string {
	fw := strings.TrimSpace(strings.TrimPrefix(firmware, "Version:"))
	fw = strings.TrimSpace(fw)
	if parts := strings.SplitN(fw, "_", 2); len(parts) > 0 {
		if m := gatewayModelRegexp.FindStringSubmatch(parts[0]); m != nil {
			return m[1]
		}
	}
	if st := strings.TrimSpace(stationType); st != "" {
		if parts := strings.SplitN(st, "_", 2); len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return "Unknown"
}

func stripSuffixes(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "%")
	v = strings.TrimSuffix(v, " hPa")
	v = strings.TrimSuffix(v, " inHg")
	return strings.TrimSpace(v)
}
