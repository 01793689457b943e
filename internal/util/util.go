package util

import (
	"crypto/md5"
	"encoding/hex"

	"ecowitt2mqtt/internal/config"

	"go.uber.org/zap"
)

func Md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Md5HashShort returns the first 8 hex chars of the md5 of text. Used
// to derive short stable ids from config values.
func Md5HashShort(text string) string {
	return Md5Hash(text)[0:8]
}

func LoadTestConfig() config.Config {
	gateway := config.GatewayConfig{
		Host:                  "-.-.-.-",
		PollIntervalMillis:    5000,
		MappingIntervalMillis: 60000,
	}
	return config.Config{
		LogLevel: zap.DebugLevel,
		Gateway:  gateway,
		Gateways: []config.GatewayConfig{gateway},
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Port: 8080,
	}
}
