package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/core/events"
)

func TestBridgeCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/bridge/command/refresh"
	r := bridgeCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "refresh", "command extract")
}

func TestBridgeCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/sensor/ecowitt_tempinf/state"
	r := bridgeCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestHADiscoverySensorTopic(t *testing.T) {
	sensor := domain.GenericSensor{
		Device:     domain.Device{Id: "eco_unit_c43a"},
		Id:         "ecowitt_soilmoisture1_c43a",
		SensorType: events.SENSOR_TYPE_SENSOR,
	}
	topic := HADiscoverySensorTopic(sensor)
	assert.Equal(t, "homeassistant/sensor/eco_unit_c43a/ecowitt_soilmoisture1_c43a/config", topic)
}
