package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecowitt2mqtt/internal/core/domain"
)

func TestNormalizeDefault(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.Value
	}{
		{"89%", domain.IntValue(89)},
		{"29.40 inHg", domain.FloatValue(29.40)},
		{"69.4 F", domain.FloatValue(69.4)},
		{"1013.2 hPa", domain.FloatValue(1013.2)},
		{"0.00 in/Hr", domain.FloatValue(0)},
		{"-3.5", domain.FloatValue(-3.5)},
		{"42", domain.IntValue(42)},
		{"--", domain.NoReading()},
		{"---", domain.NoReading()},
		{"-.-", domain.NoReading()},
		{".", domain.NoReading()},
		{"- -", domain.NoReading()},
		{"null", domain.NoReading()},
		{"None", domain.NoReading()},
		{"N/A", domain.NoReading()},
		{"", domain.NoReading()},
		{"West", domain.TextValue("West")},
	}
	for _, c := range cases {
		got := Normalize(c.raw, ClassDefault)
		assert.Equal(t, c.want, got, "raw=%q", c.raw)
	}
}

func TestNormalizeBatteryCode(t *testing.T) {
	assert.Equal(t, domain.IntValue(60), Normalize("3", ClassBatteryCode))
	assert.Equal(t, domain.IntValue(0), Normalize("0", ClassBatteryCode))
	assert.Equal(t, domain.IntValue(100), Normalize("5", ClassBatteryCode))
	// already a percentage, left unscaled
	assert.Equal(t, domain.IntValue(80), Normalize("80", ClassBatteryCode))
	assert.Equal(t, domain.NoReading(), Normalize("--", ClassBatteryCode))
	assert.Equal(t, domain.NoReading(), Normalize("", ClassBatteryCode))
	assert.Equal(t, domain.TextValue("DC"), Normalize("DC", ClassBatteryCode))
}

func TestNormalizeSignalCode(t *testing.T) {
	assert.Equal(t, domain.IntValue(50), Normalize("2", ClassSignalCode))
	assert.Equal(t, domain.IntValue(100), Normalize("4", ClassSignalCode))
	assert.Equal(t, domain.IntValue(0), Normalize("0", ClassSignalCode))
	assert.Equal(t, domain.NoReading(), Normalize("--", ClassSignalCode))
	assert.Equal(t, domain.NoReading(), Normalize("", ClassSignalCode))
}

func TestValuePayload(t *testing.T) {
	assert.Equal(t, "89", domain.IntValue(89).Payload())
	assert.Equal(t, "29.4", domain.FloatValue(29.40).Payload())
	assert.Equal(t, "West", domain.TextValue("West").Payload())
	assert.Equal(t, "", domain.NoReading().Payload())
}
