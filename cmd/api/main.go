package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "ecowitt2mqtt/internal/adapter/actor"
	"ecowitt2mqtt/internal/config"
	"ecowitt2mqtt/internal/core/actor"
	"ecowitt2mqtt/internal/metrics"
	"ecowitt2mqtt/internal/server"
	"ecowitt2mqtt/internal/util/actorutil"
	"ecowitt2mqtt/pkg/ecowitt"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	bridgeMetrics := metrics.NewBridgeMetrics("ecowitt2mqtt")

	// init gateway actor provider
	gatewayProv, err := gatewayActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, gatewayProv, mqttActorProvider(cfg, bridgeMetrics, logger), bridgeMetrics, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => ECOWITT2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ECOWITT2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("ecowitt2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// promote the single-gateway shorthand into the list
	if len(cfg.Gateways) == 0 {
		cfg.Gateways = []config.GatewayConfig{cfg.Gateway}
	}

	// apply defaults and check bounds per gateway entry
	for i := range cfg.Gateways {
		gw := &cfg.Gateways[i]
		if gw.PollIntervalMillis == 0 {
			gw.PollIntervalMillis = cfg.Gateway.PollIntervalMillis
		}
		if gw.MappingIntervalMillis == 0 {
			gw.MappingIntervalMillis = cfg.Gateway.MappingIntervalMillis
		}
		if gw.RequestTimeoutMillis == 0 {
			gw.RequestTimeoutMillis = cfg.Gateway.RequestTimeoutMillis
		}
		if gw.Host == "" {
			return nil, errors.New("config param gateway.host is required")
		}
		if gw.PollIntervalMillis < 1000 {
			return nil, errors.New("config param gateway.poll_interval_millis should be >= 1000")
		}
		if gw.MappingIntervalMillis < gw.PollIntervalMillis {
			return nil, errors.New("config param gateway.mapping_interval_millis should be >= gateway.poll_interval_millis")
		}
	}

	return &cfg, nil
}

func gatewayActorProvider(cfg *config.Config, logger *zap.Logger) (actor.GatewayActorProvider, error) {

	clients := make(map[string]ecowitt.Client, len(cfg.Gateways))
	for _, gw := range cfg.Gateways {
		timeout := time.Duration(gw.RequestTimeoutMillis) * time.Millisecond
		client, err := ecowitt.CreateHTTPClient(gw.Host, gw.Password, timeout, logger)
		if err != nil {
			return nil, err
		}
		clients[gw.ConfigId()] = client
	}

	return func(gw config.GatewayConfig) *adactor.GatewayActor {
		return adactor.NewGatewayActor(clients[gw.ConfigId()], logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, bridgeMetrics *metrics.BridgeMetrics, logger *zap.Logger) actor.MQTTActorProvider {
	return func(stream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, stream, bridgeMetrics, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "ecowitt2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("gateway.poll_interval_millis", 10000)
	viper.SetDefault("gateway.mapping_interval_millis", 300000)
	viper.SetDefault("gateway.request_timeout_millis", 5000)
	viper.SetDefault("gateway.include_inactive", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Gateway.Password = "*redacted*"
	// copy the list so the running config keeps its passwords
	gateways := make([]config.GatewayConfig, len(cfg.Gateways))
	copy(gateways, cfg.Gateways)
	for i := range gateways {
		gateways[i].Password = "*redacted*"
	}
	cfg.Gateways = gateways
	slog.Info("Using", "config", cfg)
}
