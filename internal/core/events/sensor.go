package events

import (
	"fmt"
	"strings"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	SENSOR_TYPE_SENSOR = "sensor"
	SENSOR_TYPE_BINARY = "binary_sensor"

	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
)

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("ecowitt2mqtt_bridge_%s", util.Md5HashShort(baseTopic)),
		Manufacturer: "ecowitt2mqtt",
		Model:        "Ecowitt2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Ecowitt2MQTT %s", util.Md5HashShort(baseTopic)),
	}
}

func GatewayDevice(info domain.GatewayInfo) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("eco_gateway_%s", util.Md5HashShort(info.ConfigId)),
		Manufacturer: "Ecowitt",
		Model:        info.Model,
		Version:      info.Firmware,
		Name:         fmt.Sprintf("Ecowitt %s %s", info.Model, util.Md5HashShort(info.ConfigId)),
	}
}

func UnitDevice(unit domain.HardwareUnit, gatewayDevice domain.Device) domain.Device {
	name := unit.Name
	if name == "" {
		name = domain.SensorTypeDisplayName(unit.SensorType)
	}
	return domain.Device{
		Id:           fmt.Sprintf("eco_unit_%s", strings.ToLower(unit.HardwareId)),
		Manufacturer: "Ecowitt",
		Model:        domain.SensorTypeDisplayName(unit.SensorType),
		Name:         fmt.Sprintf("%s %s", name, unit.HardwareId),
		ViaDevice:    gatewayDevice.Id,
	}
}

func IdDevice(device domain.Device) domain.Device {
	return domain.Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Bridge connection state
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

// CatalogSensors builds the discoverable entity list for a catalog.
// Gateway-owned readings attach to the gateway device, unit-owned ones
// to their hardware unit device.
func CatalogSensors(catalog *domain.TelemetryCatalog, bridgeDevice domain.Device) []domain.GenericSensor {

	gatewayDevice := GatewayDevice(catalog.Gateway)
	gatewayDevice.ViaDevice = bridgeDevice.Id

	unitDevices := make(map[string]domain.Device, len(catalog.Units))
	for _, unit := range catalog.Units {
		unitDevices[unit.HardwareId] = UnitDevice(unit, gatewayDevice)
	}

	var sensors []domain.GenericSensor
	for _, reading := range catalog.Readings {
		device := gatewayDevice
		if reading.HardwareId != "" {
			if d, ok := unitDevices[reading.HardwareId]; ok {
				device = d
			}
		}

		sensor := domain.GenericSensor{
			Device:            device,
			Id:                reading.EntityKey,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              reading.Name,
			UnitOfMeasurement: reading.Unit,
			UniqueId:          uniqueId(device.Id, reading.EntityKey),
		}
		if meta, ok := domain.LookupWireKeyMeta(reading.WireKey); ok {
			sensor.DeviceClass = meta.DeviceClass
			sensor.StateClass = meta.StateClass
			sensor.Icon = meta.Icon
		}
		switch reading.Category {
		case domain.CATEGORY_BATTERY, domain.CATEGORY_DIAGNOSTIC, domain.CATEGORY_SYSTEM:
			sensor.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
		}
		sensors = append(sensors, sensor)
	}
	return sensors
}

// CatalogToUpdateEvents converts a catalog into per-entity update
// events for republishing. Empty values produce no event so stale
// retained states are left untouched.
func CatalogToUpdateEvents(catalog *domain.TelemetryCatalog) []any {
	var events []any
	for _, reading := range catalog.Readings {
		if reading.Value.IsNone() {
			continue
		}
		mixin := domain.SensorUpdateEventMixIn{
			Id: reading.EntityKey,
		}
		switch reading.Value.Kind {
		case domain.ValueInt:
			events = append(events, domain.IntSensorUpdateEvent{
				SensorUpdateEventMixIn: mixin,
				Value:                  int64(reading.Value.Num),
			})
		case domain.ValueFloat:
			events = append(events, domain.FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: mixin,
				Value:                  reading.Value.Num,
				Decimals:               2,
			})
		case domain.ValueText:
			events = append(events, domain.TextSensorUpdateEvent{
				SensorUpdateEventMixIn: mixin,
				Value:                  reading.Value.Text,
			})
		}
	}
	return events
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}
