package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/pkg/ecowitt"
)

func testSnapshot() []ecowitt.RawMappingEntry {
	return []ecowitt.RawMappingEntry{
		{ID: "C43A", Img: "wh51", Name: "Soil moisture CH1", Channel: "1", Batt: "4", Signal: "4"},
		{ID: "1F02B", Img: "wh31", Name: "Temp & Humidity CH2", Channel: "2", Batt: "0", Signal: "3"},
		{ID: "FFFFFFFE", Img: "wh68", Name: "Weather Station", Batt: "0", Signal: "0"},
		{ID: "ffffffff", Img: "wh55", Name: "Leak CH1", Channel: "1", Batt: "0", Signal: "0"},
		{ID: "00000000", Img: "wh57", Name: "Lightning", Batt: "0", Signal: "0"},
	}
}

func TestUpdateMappingDiscardsSentinels(t *testing.T) {
	m := NewMapper()
	stats := m.UpdateMapping(testSnapshot())

	assert.Equal(t, 2, stats.Units)
	assert.Equal(t, []string{"wh31", "wh51"}, stats.SensorTypes)

	_, ok := m.Unit("FFFFFFFE")
	assert.False(t, ok)
	_, ok = m.Unit("00000000")
	assert.False(t, ok)
}

func TestWireKeyResolution(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping(testSnapshot())

	id, ok := m.HardwareId("soilmoisture1")
	assert.True(t, ok)
	assert.Equal(t, "C43A", id)

	id, ok = m.HardwareId("soilbatt1")
	assert.True(t, ok)
	assert.Equal(t, "C43A", id)

	id, ok = m.HardwareId("temp2f")
	assert.True(t, ok)
	assert.Equal(t, "1F02B", id)

	_, ok = m.HardwareId("soilmoisture2")
	assert.False(t, ok)
}

func TestUpdateMappingIsAtomicRebuild(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping(testSnapshot())

	// second snapshot drops the soil sensor entirely
	m.UpdateMapping([]ecowitt.RawMappingEntry{
		{ID: "1F02B", Img: "wh31", Name: "Temp & Humidity CH2", Channel: "2", Signal: "3"},
	})

	_, ok := m.Unit("C43A")
	assert.False(t, ok)
	_, ok = m.HardwareId("soilmoisture1")
	assert.False(t, ok)
	_, ok = m.HardwareId("temp2f")
	assert.True(t, ok)
}

func TestUnknownModelClassifiedGeneric(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping([]ecowitt.RawMappingEntry{
		{ID: "AB12", Img: "wh99", Name: "Mystery", Channel: "1", Signal: "2"},
		{ID: "AB13", Img: "", Name: "Blank", Signal: "1"},
	})

	u, ok := m.Unit("AB12")
	assert.True(t, ok)
	assert.Equal(t, "wh99", u.SensorType)
	assert.Empty(t, wireKeysFor(u.SensorType, u.Channel))

	u, ok = m.Unit("AB13")
	assert.True(t, ok)
	assert.Equal(t, "unknown", u.SensorType)
}

func TestInjectSyntheticUnitIdempotent(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping(testSnapshot())

	unit := domain.HardwareUnit{
		HardwareId: "D119",
		SensorType: "ws90",
		Name:       "WS90 Weather Station",
		Battery:    "3",
		Active:     true,
	}
	m.InjectSyntheticUnit(unit, WS90WireKeys())
	m.InjectSyntheticUnit(unit, WS90WireKeys())

	stats := m.Stats()
	assert.Equal(t, 3, stats.Units)

	got, ok := m.Unit("D119")
	assert.True(t, ok)
	assert.True(t, got.Synthetic)

	id, ok := m.HardwareId("0x02")
	assert.True(t, ok)
	assert.Equal(t, "D119", id)
	id, ok = m.HardwareId("ws90batt")
	assert.True(t, ok)
	assert.Equal(t, "D119", id)
}

func TestSyntheticUnitDroppedOnRebuild(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping(testSnapshot())
	m.InjectSyntheticUnit(domain.HardwareUnit{
		HardwareId: "D119",
		SensorType: "ws90",
	}, WS90WireKeys())

	m.UpdateMapping(testSnapshot())

	_, ok := m.Unit("D119")
	assert.False(t, ok)
	_, ok = m.HardwareId("0x02")
	assert.False(t, ok)
}

func TestInjectSyntheticReusesMappedEntry(t *testing.T) {
	m := NewMapper()
	m.UpdateMapping([]ecowitt.RawMappingEntry{
		{ID: "D8174", Img: "wh90", Name: "Temp & Humidity & Solar & Wind & Rain", Batt: "3", Signal: "4"},
	})

	m.InjectSyntheticUnit(domain.HardwareUnit{
		HardwareId: "D8174",
		SensorType: "ws90",
		Battery:    "3",
		Active:     true,
	}, WS90WireKeys())

	u, ok := m.Unit("D8174")
	assert.True(t, ok)
	assert.Equal(t, "ws90", u.SensorType)
	// mapping-provided name survives the injection
	assert.Equal(t, "Temp & Humidity & Solar & Wind & Rain", u.Name)
	assert.Equal(t, "4", u.Signal)
}

func TestEntityKeyForms(t *testing.T) {
	key, name := EntityKey("soilmoisture1", "C43A", "192.168.1.50")
	assert.Equal(t, "ecowitt_soilmoisture1_c43a", key)
	assert.Equal(t, "Soil Moisture CH1", name)

	key, name = EntityKey("tempinf", "", "192.168.1.50")
	assert.Regexp(t, `^ecowitt_[0-9a-f]{8}_tempinf$`, key)
	assert.Equal(t, "Indoor Temperature", name)

	// hex wire keys sanitize cleanly
	key, _ = EntityKey("0x02", "D8174", "192.168.1.50")
	assert.Equal(t, "ecowitt_0x02_d8174", key)
}

func TestEntityKeyDistinctPerGateway(t *testing.T) {
	a, _ := EntityKey("tempinf", "", "192.168.1.50")
	b, _ := EntityKey("tempinf", "", "192.168.1.51")
	assert.NotEqual(t, a, b)
}

func TestEntityKeyFallbackDisplayName(t *testing.T) {
	_, name := EntityKey("some_custom_key", "", "host")
	assert.Equal(t, "Some Custom Key", name)
}
