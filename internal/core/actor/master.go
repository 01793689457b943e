package actor

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	adactor "ecowitt2mqtt/internal/adapter/actor"
	"ecowitt2mqtt/internal/config"
	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/metrics"
	. "ecowitt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type GatewayActorProvider func(gateway config.GatewayConfig) *adactor.GatewayActor

// MasterOfPuppetsActor supervises one gateway+poller pair per
// configured gateway plus a shared MQTT child. Cross-gateway requests
// fan out to every poller and join with partial success: one gateway
// failing never aborts the rest.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	gatewayActors        []*actor.PID
	pollerActors         []*actor.PID
	mqttActor            *actor.PID
	gatewayActorProvider GatewayActorProvider
	mqttActorProvider    MQTTActorProvider
	metrics              *metrics.BridgeMetrics
	logger               *zap.Logger
}

type healthCheckResult struct {
	expected       int
	healthy        int
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, gatewayActorProvider GatewayActorProvider, mqttActorProvider MQTTActorProvider,
	bridgeMetrics *metrics.BridgeMetrics, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger("master", logger),
		eventStream:          &eventstream.EventStream{},
		gatewayActorProvider: gatewayActorProvider,
		mqttActorProvider:    mqttActorProvider,
		metrics:              bridgeMetrics,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// one transport + poller pair per configured gateway
		for i, gateway := range state.config.Gateways {
			gatewayActorPID, err := state.startGatewayActor(ctx, i, gateway)
			if err != nil {
				panic(err)
			}
			state.gatewayActors = append(state.gatewayActors, gatewayActorPID)

			pollerActorPID, err := state.startPollerActor(ctx, i, gateway, gatewayActorPID)
			if err != nil {
				panic(err)
			}
			state.pollerActors = append(state.pollerActors, pollerActorPID)
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.expected = 1 + len(state.gatewayActors) + len(state.pollerActors)
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT actor request
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// gateway transport requests
		for _, pid := range state.gatewayActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_GATEWAY,
					Healthy: false,
				}
			})
		}
		// poller requests
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_POLLER,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to every poller
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err == nil && cmd != nil {
				switch pcmd := cmd.(type) {
				case domain.RefreshDataRequest:
					for _, pid := range state.pollerActors {
						ctx.Send(pid, pcmd)
					}
				case domain.RefreshMappingRequest:
					for _, pid := range state.pollerActors {
						ctx.Send(pid, pcmd)
					}
				}
			}
		}
	case domain.RefreshAllDataRequest:
		state.logger.Debug("master@default RefreshAllDataRequest")
		respondTo := ForRequest(msg).ReplyTo(ctx)
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.RefreshDataRequest{ForceMapping: msg.ForceMapping}, 30*time.Second), func(err error) any {
				return domain.RefreshDataResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.behavior.BecomeStacked(state.refreshAllDataReceive(respondTo, len(state.pollerActors)))
	case domain.RefreshAllMappingRequest:
		state.logger.Debug("master@default RefreshAllMappingRequest")
		respondTo := ForRequest(msg).ReplyTo(ctx)
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.RefreshMappingRequest{}, 30*time.Second), func(err error) any {
				return domain.RefreshMappingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.behavior.BecomeStacked(state.refreshAllMappingReceive(respondTo, len(state.pollerActors)))
	case domain.GetAllCatalogsRequest:
		respondTo := ForRequest(msg).ReplyTo(ctx)
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.GetCatalogRequest{}, 10*time.Second), func(err error) any {
				return domain.GetCatalogResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.behavior.BecomeStacked(state.catalogGatherReceive(respondTo, len(state.pollerActors)))
	case domain.GetReadingRequest:
		respondTo := ForRequest(msg).ReplyTo(ctx)
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.GetReadingRequest{EntityKey: msg.EntityKey}, 10*time.Second), func(err error) any {
				return domain.GetReadingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.behavior.BecomeStacked(state.readingGatherReceive(respondTo, len(state.pollerActors), msg.EntityKey))
	case domain.GetHardwareUnitsRequest:
		respondTo := ForRequest(msg).ReplyTo(ctx)
		for _, pid := range state.pollerActors {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.GetHardwareUnitsRequest{}, 10*time.Second), func(err error) any {
				return domain.GetHardwareUnitsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
		}
		state.behavior.BecomeStacked(state.unitsGatherReceive(respondTo, len(state.pollerActors)))
	case *actor.Terminated:
		// if a transport actor fails on boot, terminate
		if strings.HasPrefix(msg.Who.Id, fmt.Sprintf("%s/%s_", ctx.Self().GetId(), domain.ACTOR_ID_GATEWAY)) {
			state.logger.Error("master@default gateway error", zap.String("who", msg.Who.Id))
			panic(errors.New("gateway terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) refreshAllDataReceive(respondTo *actor.PID, expected int) actor.ReceiveFunc {
	var refreshed, failed int
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.RefreshDataResponse:
			if msg.HasResponseError() {
				failed++
			} else {
				refreshed++
			}
			if refreshed+failed == expected {
				if respondTo != nil {
					ctx.Send(respondTo, domain.RefreshAllDataResponse{
						Refreshed: refreshed,
						Failed:    failed,
					})
				}
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
			}
		default:
			state.logger.Debug("master@refreshall stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *MasterOfPuppetsActor) refreshAllMappingReceive(respondTo *actor.PID, expected int) actor.ReceiveFunc {
	var refreshed, failed int
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.RefreshMappingResponse:
			if msg.HasResponseError() {
				failed++
			} else {
				refreshed++
			}
			if refreshed+failed == expected {
				if respondTo != nil {
					ctx.Send(respondTo, domain.RefreshAllMappingResponse{
						Refreshed: refreshed,
						Failed:    failed,
					})
				}
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
			}
		default:
			state.logger.Debug("master@refreshallmapping stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *MasterOfPuppetsActor) catalogGatherReceive(respondTo *actor.PID, expected int) actor.ReceiveFunc {
	var received int
	var catalogs []*domain.TelemetryCatalog
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.GetCatalogResponse:
			received++
			if !msg.HasResponseError() && msg.Catalog != nil {
				catalogs = append(catalogs, msg.Catalog)
			}
			if received == expected {
				if respondTo != nil {
					ctx.Send(respondTo, domain.GetAllCatalogsResponse{Catalogs: catalogs})
				}
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
			}
		default:
			state.logger.Debug("master@catalogs stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *MasterOfPuppetsActor) readingGatherReceive(respondTo *actor.PID, expected int, entityKey string) actor.ReceiveFunc {
	var received int
	var found *domain.SensorReading
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.GetReadingResponse:
			received++
			if !msg.HasResponseError() && msg.Reading != nil && found == nil {
				found = msg.Reading
			}
			if received == expected {
				if respondTo != nil {
					resp := domain.GetReadingResponse{Reading: found}
					if found == nil {
						resp.ResponseError = fmt.Errorf("unknown entity key %s", entityKey)
					}
					ctx.Send(respondTo, resp)
				}
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
			}
		default:
			state.logger.Debug("master@reading stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *MasterOfPuppetsActor) unitsGatherReceive(respondTo *actor.PID, expected int) actor.ReceiveFunc {
	var received int
	var units []domain.HardwareUnit
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case domain.GetHardwareUnitsResponse:
			received++
			if !msg.HasResponseError() {
				units = append(units, msg.Units...)
			}
			if received == expected {
				if respondTo != nil {
					ctx.Send(respondTo, domain.GetHardwareUnitsResponse{Units: units})
				}
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
			}
		default:
			state.logger.Debug("master@units stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			state.currentHealthCheck.healthy++
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startGatewayActor(ctx actor.Context, index int, gateway config.GatewayConfig) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	gatewayProps := actor.PropsFromProducer(func() actor.Actor {
		return state.gatewayActorProvider(gateway)
	}, actor.WithSupervisor(supervisor))
	gatewayActorPID, err := ctx.SpawnNamed(gatewayProps, fmt.Sprintf("%s_%d", domain.ACTOR_ID_GATEWAY, index))
	if err != nil {
		return nil, err
	}

	return gatewayActorPID, nil
}

func (state *MasterOfPuppetsActor) startPollerActor(ctx actor.Context, index int, gateway config.GatewayConfig, gatewayActorPID *actor.PID) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(gateway, gatewayActorPID, state.eventStream, state.metrics, state.logger)
	}, actor.WithSupervisor(supervisor))
	pollerActorPID, err := ctx.SpawnNamed(pollerProps, fmt.Sprintf("%s_%d", domain.ACTOR_ID_POLLER, index))
	if err != nil {
		return nil, err
	}

	return pollerActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.gatewayActors, state.mqttActor, state.pollerActors, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.expected = 0
	state.healthy = 0
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.healthy == state.expected
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      "master",
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
