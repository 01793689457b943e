package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/core/mapper"
	"ecowitt2mqtt/pkg/ecowitt"
)

func testGateway() domain.GatewayInfo {
	return domain.GatewayInfo{
		ConfigId: "192.168.1.50",
		Host:     "192.168.1.50",
		Model:    "GW1100A",
		Firmware: "GW1100A_V2.4.3",
	}
}

func testLiveData() *ecowitt.LiveData {
	return &ecowitt.LiveData{
		CommonList: []ecowitt.LiveDataItem{
			{ID: "0x02", Val: "69.4 F"},
			{ID: "0x07", Val: "89%"},
			{ID: "3", Val: "70.2 F"},
			{ID: "5", Val: "0.52 inHg"},
		},
		WH25: []ecowitt.WH25Item{
			{InTemp: "73.4", Unit: "F", InHumi: "52%", Abs: "29.40 inHg", Rel: "29.86 inHg"},
		},
		Soil: []ecowitt.SoilChannel{
			{Channel: "1", Name: "Garden", Battery: "4", Humidity: "43%"},
		},
		Aisle: []ecowitt.AisleChannel{
			{Channel: "2", Name: "Bedroom", Battery: "3", Temp: "68.5", Unit: "F", Humidity: "55%"},
		},
	}
}

func testMapper() *mapper.Mapper {
	m := mapper.NewMapper()
	m.UpdateMapping([]ecowitt.RawMappingEntry{
		{ID: "C43A", Img: "wh51", Name: "Soil moisture CH1", Channel: "1", Batt: "4", Signal: "4"},
		{ID: "1F02B", Img: "wh31", Name: "Temp & Humidity CH2", Channel: "2", Batt: "0", Signal: "3"},
	})
	return m
}

func findByWireKey(t *testing.T, catalog *domain.TelemetryCatalog, key string) domain.SensorReading {
	t.Helper()
	for _, r := range catalog.Readings {
		if r.WireKey == key {
			return r
		}
	}
	t.Fatalf("no reading for wire key %s", key)
	return domain.SensorReading{}
}

func TestAssembleBasicSections(t *testing.T) {
	catalog := Assemble(testLiveData(), testMapper(), testGateway(), false, time.Now())

	soil := findByWireKey(t, catalog, "soilmoisture1")
	assert.Equal(t, "C43A", soil.HardwareId)
	assert.Equal(t, "ecowitt_soilmoisture1_c43a", soil.EntityKey)
	assert.Equal(t, domain.IntValue(43), soil.Value)
	assert.Equal(t, domain.CATEGORY_PRIMARY, soil.Category)
	assert.Equal(t, "wh51", soil.SensorType)
	assert.Equal(t, "1", soil.Channel)

	soilBatt := findByWireKey(t, catalog, "soilbatt1")
	assert.Equal(t, domain.IntValue(80), soilBatt.Value)
	assert.Equal(t, domain.CATEGORY_BATTERY, soilBatt.Category)

	indoor := findByWireKey(t, catalog, "tempinf")
	assert.Empty(t, indoor.HardwareId)
	assert.Equal(t, domain.FloatValue(73.4), indoor.Value)

	pressure := findByWireKey(t, catalog, "baromabsin")
	assert.Equal(t, domain.FloatValue(29.40), pressure.Value)

	aisleTemp := findByWireKey(t, catalog, "temp2f")
	assert.Equal(t, "1F02B", aisleTemp.HardwareId)
	assert.Equal(t, domain.FloatValue(68.5), aisleTemp.Value)

	aisleBatt := findByWireKey(t, catalog, "batt2")
	assert.Equal(t, domain.IntValue(60), aisleBatt.Value)
}

func TestAssembleGatewayOwnershipWithoutWS90(t *testing.T) {
	catalog := Assemble(testLiveData(), testMapper(), testGateway(), false, time.Now())

	feelsLike := findByWireKey(t, catalog, "3")
	assert.Empty(t, feelsLike.HardwareId)

	outdoorTemp := findByWireKey(t, catalog, "0x02")
	assert.Empty(t, outdoorTemp.HardwareId)
}

func TestAssembleWS90Detection(t *testing.T) {
	live := testLiveData()
	live.PiezoRain = []ecowitt.LiveDataItem{
		{ID: "0x0D", Val: "0.00 in"},
		{ID: "srain_piezo", Val: "0.00 in/Hr", Battery: "3", Voltage: "2.62", WS90Version: "119"},
	}
	m := testMapper()
	catalog := Assemble(live, m, testGateway(), false, time.Now())

	// exactly one synthetic unit created
	var synthetic []domain.HardwareUnit
	for _, u := range m.Units() {
		if u.Synthetic {
			synthetic = append(synthetic, u)
		}
	}
	assert.Len(t, synthetic, 1)
	assert.Equal(t, "D119", synthetic[0].HardwareId)
	assert.Equal(t, "ws90", synthetic[0].SensorType)
	assert.Equal(t, "4", synthetic[0].Signal)

	// ambiguous keys follow the station this cycle
	feelsLike := findByWireKey(t, catalog, "3")
	assert.Equal(t, "D119", feelsLike.HardwareId)
	vpd := findByWireKey(t, catalog, "5")
	assert.Equal(t, "D119", vpd.HardwareId)

	outdoorTemp := findByWireKey(t, catalog, "0x02")
	assert.Equal(t, "D119", outdoorTemp.HardwareId)

	batt := findByWireKey(t, catalog, "ws90batt")
	assert.Equal(t, domain.IntValue(60), batt.Value)
	assert.Equal(t, domain.CATEGORY_BATTERY, batt.Category)
}

func TestAssembleWS90FallbackIdentity(t *testing.T) {
	live := testLiveData()
	live.PiezoRain = []ecowitt.LiveDataItem{
		{ID: "srain_piezo", Val: "0.00 in/Hr", Battery: "3", WS90Version: "9"},
	}
	m := mapper.NewMapper()
	catalog := Assemble(live, m, testGateway(), false, time.Now())

	u, ok := m.Unit("WS90_DEFAULT")
	assert.True(t, ok)
	assert.True(t, u.Synthetic)

	// signal diagnostic reports full strength for a freshly detected station
	var signal domain.SensorReading
	for _, r := range catalog.Readings {
		if r.WireKey == "signal" && r.HardwareId == "WS90_DEFAULT" {
			signal = r
		}
	}
	assert.Equal(t, domain.IntValue(100), signal.Value)
}

func TestAssembleWS90ReusesMappedWH90(t *testing.T) {
	live := testLiveData()
	live.PiezoRain = []ecowitt.LiveDataItem{
		{ID: "srain_piezo", Val: "0.00 in/Hr", Battery: "3", WS90Version: "119"},
	}
	m := mapper.NewMapper()
	m.UpdateMapping([]ecowitt.RawMappingEntry{
		{ID: "D8174", Img: "wh90", Name: "Temp & Humidity & Solar & Wind & Rain", Batt: "3", Signal: "4"},
	})

	catalog := Assemble(live, m, testGateway(), false, time.Now())

	outdoorTemp := findByWireKey(t, catalog, "0x02")
	assert.Equal(t, "D8174", outdoorTemp.HardwareId)

	u, ok := m.Unit("D8174")
	assert.True(t, ok)
	assert.Equal(t, "ws90", u.SensorType)
}

func TestAssembleIncludeInactive(t *testing.T) {
	live := &ecowitt.LiveData{
		CommonList: []ecowitt.LiveDataItem{
			{ID: "0x02", Val: ""},
		},
	}
	m := mapper.NewMapper()

	catalog := Assemble(live, m, testGateway(), false, time.Now())
	assert.Empty(t, catalog.Readings)

	catalog = Assemble(live, m, testGateway(), true, time.Now())
	r := findByWireKey(t, catalog, "0x02")
	assert.True(t, r.Value.IsNone())
}

func TestAssembleDiagnostics(t *testing.T) {
	catalog := Assemble(testLiveData(), testMapper(), testGateway(), false, time.Now())

	perUnit := make(map[string][]domain.SensorReading)
	for _, r := range catalog.Readings {
		if r.Category == domain.CATEGORY_DIAGNOSTIC {
			perUnit[r.HardwareId] = append(perUnit[r.HardwareId], r)
		}
	}
	assert.Len(t, perUnit, 2)
	for id, diags := range perUnit {
		assert.Len(t, diags, 3, "unit %s", id)
	}

	soil := perUnit["C43A"]
	keys := map[string]domain.Value{}
	for _, d := range soil {
		keys[d.WireKey] = d.Value
	}
	assert.Equal(t, domain.IntValue(100), keys["signal"])
	assert.Equal(t, domain.TextValue("C43A"), keys["hardware_id"])
	assert.Equal(t, domain.TextValue("1"), keys["channel"])
}

func TestAssembleDiagnosticsStableAcrossCalls(t *testing.T) {
	m := testMapper()
	gw := testGateway()
	now := time.Now()

	first := Assemble(testLiveData(), m, gw, false, now)
	second := Assemble(testLiveData(), m, gw, false, now)
	assert.Equal(t, len(first.Readings), len(second.Readings))
}

func TestGatewayModel(t *testing.T) {
	assert.Equal(t, "GW1100A", GatewayModel("GW1100A_V2.4.3", ""))
	assert.Equal(t, "GW1100A", GatewayModel("Version: GW1100A_V2.4.3", ""))
	assert.Equal(t, "GW2000B", GatewayModel("junk", "GW2000B_V3.1.0"))
	assert.Equal(t, "Unknown", GatewayModel("", ""))
}

func TestCatalogReadingLookup(t *testing.T) {
	catalog := Assemble(testLiveData(), testMapper(), testGateway(), false, time.Now())

	r, ok := catalog.Reading("ecowitt_soilmoisture1_c43a")
	assert.True(t, ok)
	assert.Equal(t, "soilmoisture1", r.WireKey)

	_, ok = catalog.Reading("ecowitt_nope")
	assert.False(t, ok)
}
