package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	// Gateway is the single-gateway shorthand; it is promoted into
	// Gateways on startup when the list is empty.
	Gateway  GatewayConfig   `mapstructure:"gateway"`
	Gateways []GatewayConfig `mapstructure:"gateways"`
	MQTT     MQTTConfig      `mapstructure:"mqtt"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type GatewayConfig struct {
	Host                  string
	Password              string
	PollIntervalMillis    uint32 `mapstructure:"poll_interval_millis"`
	MappingIntervalMillis uint32 `mapstructure:"mapping_interval_millis"`
	IncludeInactive       bool   `mapstructure:"include_inactive"`
	RequestTimeoutMillis  uint32 `mapstructure:"request_timeout_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ConfigId is a stable identifier for this gateway configuration, used
// to scope entity keys that have no hardware id.
func (c GatewayConfig) ConfigId() string {
	return strings.ToLower(strings.TrimSpace(c.Host))
}
