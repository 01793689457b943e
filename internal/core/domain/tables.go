package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// WireKeyMeta is the static presentation metadata for one wire key.
type WireKeyMeta struct {
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
}

// Keys the gateway itself always owns regardless of mapping state.
var GATEWAY_SENSORS = map[string]bool{
	"tempinf":    true,
	"humidityin": true,
	"baromabsin": true,
	"baromrelin": true,
	"heap":       true,
	"runtime":    true,
	"interval":   true,
}

// Keys produced exclusively by an all-in-one WS90 station.
var WS90_SENSOR_KEYS = map[string]bool{
	"0x02": true, "0x03": true, "0x07": true, "0x0B": true,
	"0x0C": true, "0x19": true, "0x0A": true, "0x6D": true,
	"0x15": true, "0x17": true, "0x0D": true, "0x0E": true,
	"0x7C": true, "0x10": true, "0x11": true, "0x12": true,
	"0x13": true, "0x14": true,
	"3": true, "5": true,
	"srain_piezo": true, "ws90batt": true,
}

// Ambiguous keys that follow the WS90 when one is present and the
// gateway otherwise. "3" is feels-like temperature, "5" is VPD.
var DYNAMIC_SENSOR_KEYS = map[string]bool{
	"3": true,
	"5": true,
}

var SYSTEM_SENSOR_KEYS = map[string]WireKeyMeta{
	"heap":     {Name: "Free Memory", Unit: "B", Icon: "mdi:memory"},
	"runtime":  {Name: "Runtime", Unit: "s", DeviceClass: "duration", Icon: "mdi:clock-outline"},
	"interval": {Name: "Update Interval", Unit: "s", DeviceClass: "duration"},
}

var fixedWireKeyMeta = map[string]WireKeyMeta{
	"tempinf":    {Name: "Indoor Temperature", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"},
	"humidityin": {Name: "Indoor Humidity", Unit: "%", DeviceClass: "humidity", StateClass: "measurement"},
	"baromabsin": {Name: "Absolute Pressure", Unit: "inHg", DeviceClass: "pressure", StateClass: "measurement"},
	"baromrelin": {Name: "Relative Pressure", Unit: "inHg", DeviceClass: "pressure", StateClass: "measurement"},

	"0x02": {Name: "Outdoor Temperature", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"},
	"0x03": {Name: "Dew Point", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"},
	"0x07": {Name: "Outdoor Humidity", Unit: "%", DeviceClass: "humidity", StateClass: "measurement"},
	"0x0A": {Name: "Wind Direction", Unit: "°", Icon: "mdi:compass"},
	"0x0B": {Name: "Wind Speed", Unit: "mph", DeviceClass: "wind_speed", StateClass: "measurement"},
	"0x0C": {Name: "Wind Gust", Unit: "mph", DeviceClass: "wind_speed", StateClass: "measurement"},
	"0x19": {Name: "Max Daily Gust", Unit: "mph", DeviceClass: "wind_speed"},
	"0x6D": {Name: "Wind Direction Average", Unit: "°", Icon: "mdi:compass"},
	"0x15": {Name: "Solar Radiation", Unit: "W/m²", DeviceClass: "irradiance", StateClass: "measurement"},
	"0x17": {Name: "UV Index", Icon: "mdi:weather-sunny-alert"},
	"0x0D": {Name: "Rain Event", Unit: "in", DeviceClass: "precipitation"},
	"0x0E": {Name: "Rain Rate", Unit: "in/h", DeviceClass: "precipitation_intensity", StateClass: "measurement"},
	"0x7C": {Name: "Rain Hour", Unit: "in", DeviceClass: "precipitation"},
	"0x10": {Name: "Rain Day", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"0x11": {Name: "Rain Week", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"0x12": {Name: "Rain Month", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"0x13": {Name: "Rain Year", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"0x14": {Name: "Rain Total", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"3":    {Name: "Feels Like Temperature", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"},
	"5":    {Name: "Vapor Pressure Deficit", Unit: "inHg", DeviceClass: "pressure", StateClass: "measurement"},

	"srain_piezo": {Name: "Piezo Rain Rate", Unit: "in/h", DeviceClass: "precipitation_intensity", StateClass: "measurement"},
	"ws90batt":    {Name: "WS90 Battery", Unit: "%", DeviceClass: "battery"},

	"tempf":        {Name: "Outdoor Temperature", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"},
	"humidity":     {Name: "Outdoor Humidity", Unit: "%", DeviceClass: "humidity", StateClass: "measurement"},
	"winddir":      {Name: "Wind Direction", Unit: "°", Icon: "mdi:compass"},
	"windspeedmph": {Name: "Wind Speed", Unit: "mph", DeviceClass: "wind_speed", StateClass: "measurement"},
	"windgustmph":  {Name: "Wind Gust", Unit: "mph", DeviceClass: "wind_speed", StateClass: "measurement"},
	"maxdailygust": {Name: "Max Daily Gust", Unit: "mph", DeviceClass: "wind_speed"},
	"solarradiation": {Name: "Solar Radiation", Unit: "W/m²", DeviceClass: "irradiance",
		StateClass: "measurement"},
	"uv":       {Name: "UV Index", Icon: "mdi:weather-sunny-alert"},
	"wh68batt": {Name: "Battery", Unit: "%", DeviceClass: "battery"},

	"lightning":      {Name: "Lightning Distance", Unit: "km", DeviceClass: "distance", Icon: "mdi:flash"},
	"lightning_time": {Name: "Lightning Last Strike", Icon: "mdi:flash"},
	"lightning_num":  {Name: "Lightning Strikes", StateClass: "total_increasing", Icon: "mdi:flash"},
	"wh57batt":       {Name: "Battery", Unit: "%", DeviceClass: "battery"},

	"rainratein":   {Name: "Rain Rate", Unit: "in/h", DeviceClass: "precipitation_intensity", StateClass: "measurement"},
	"eventrainin":  {Name: "Rain Event", Unit: "in", DeviceClass: "precipitation"},
	"dailyrainin":  {Name: "Rain Day", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"weeklyrainin": {Name: "Rain Week", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"monthlyrainin": {Name: "Rain Month", Unit: "in", DeviceClass: "precipitation",
		StateClass: "total_increasing"},
	"yearlyrainin": {Name: "Rain Year", Unit: "in", DeviceClass: "precipitation", StateClass: "total_increasing"},
	"wh40batt":     {Name: "Battery", Unit: "%", DeviceClass: "battery"},
}

var channelWireKeyPatterns = []struct {
	pattern *regexp.Regexp
	meta    WireKeyMeta
}{
	{regexp.MustCompile(`^soilmoisture(\d+)$`), WireKeyMeta{Name: "Soil Moisture CH%s", Unit: "%", DeviceClass: "humidity", StateClass: "measurement", Icon: "mdi:sprout"}},
	{regexp.MustCompile(`^soilbatt(\d+)$`), WireKeyMeta{Name: "Soil Battery CH%s", Unit: "%", DeviceClass: "battery"}},
	{regexp.MustCompile(`^temp(\d+)f$`), WireKeyMeta{Name: "Temperature CH%s", Unit: "°F", DeviceClass: "temperature", StateClass: "measurement"}},
	{regexp.MustCompile(`^humidity(\d+)$`), WireKeyMeta{Name: "Humidity CH%s", Unit: "%", DeviceClass: "humidity", StateClass: "measurement"}},
	{regexp.MustCompile(`^batt(\d+)$`), WireKeyMeta{Name: "Battery CH%s", Unit: "%", DeviceClass: "battery"}},
	{regexp.MustCompile(`^pm25_ch(\d+)$`), WireKeyMeta{Name: "PM2.5 CH%s", Unit: "µg/m³", DeviceClass: "pm25", StateClass: "measurement"}},
	{regexp.MustCompile(`^pm25batt(\d+)$`), WireKeyMeta{Name: "PM2.5 Battery CH%s", Unit: "%", DeviceClass: "battery"}},
	{regexp.MustCompile(`^leak_ch(\d+)$`), WireKeyMeta{Name: "Leak CH%s", DeviceClass: "moisture", Icon: "mdi:water-alert"}},
	{regexp.MustCompile(`^leakbatt(\d+)$`), WireKeyMeta{Name: "Leak Battery CH%s", Unit: "%", DeviceClass: "battery"}},
}

// LookupWireKeyMeta resolves presentation metadata for a wire key.
// Channelized keys get the channel number substituted into the name.
func LookupWireKeyMeta(key string) (WireKeyMeta, bool) {
	if m, ok := fixedWireKeyMeta[key]; ok {
		return m, true
	}
	if m, ok := SYSTEM_SENSOR_KEYS[key]; ok {
		return m, true
	}
	for _, p := range channelWireKeyPatterns {
		if match := p.pattern.FindStringSubmatch(key); match != nil {
			m := p.meta
			m.Name = fmt.Sprintf(m.Name, match[1])
			return m, true
		}
	}
	return WireKeyMeta{}, false
}

// IsBatteryKey reports whether a wire key carries a battery reading.
func IsBatteryKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "batt")
}

func IsSystemKey(key string) bool {
	_, ok := SYSTEM_SENSOR_KEYS[key]
	return ok
}

// IsGatewaySensor applies the gateway-ownership rule for a wire key.
// Unmapped keys fall back to gateway ownership instead of being dropped.
func IsGatewaySensor(key string, ws90Present, hasMapping bool) bool {
	if GATEWAY_SENSORS[key] || IsSystemKey(key) {
		return true
	}
	if DYNAMIC_SENSOR_KEYS[key] && !ws90Present {
		return true
	}
	if WS90_SENSOR_KEYS[key] && ws90Present {
		return false
	}
	return !hasMapping
}

var sensorTypeDisplayNames = map[string]string{
	"wh51": "Soil Moisture Sensor",
	"wh31": "Temperature/Humidity Sensor",
	"wh41": "PM2.5 Air Quality Sensor",
	"wh55": "Leak Sensor",
	"wh57": "Lightning Sensor",
	"wh40": "Rain Sensor",
	"wh68": "Weather Station",
	"wh90": "WS90 Weather Station",
	"ws90": "WS90 Weather Station",
}

// SensorTypeDisplayName resolves a model code to a human name. Unknown
// codes get a generic label instead of failing.
func SensorTypeDisplayName(sensorType string) string {
	if name, ok := sensorTypeDisplayNames[strings.ToLower(sensorType)]; ok {
		return name
	}
	if sensorType == "" {
		return "Sensor"
	}
	return fmt.Sprintf("%s Sensor", strings.ToUpper(sensorType))
}
