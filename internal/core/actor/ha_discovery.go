package actor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ecowitt2mqtt/internal/config"
	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/core/events"
	"ecowitt2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_ACTOR_ID = "hadiscovery"
)

// HADiscoveryActor waits for the gateway and MQTT actors to become
// healthy, forces a refresh cycle on every poller and announces each
// gathered catalog to Home Assistant. Afterwards it watches catalog
// updates and republishes discovery whenever a gateway's hardware unit
// set changes.
type HADiscoveryActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	gatewayActors  []*actor.PID
	mqttActor      *actor.PID
	pollerActors   []*actor.PID
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	unitSignatures map[string]string
	healthyRecv    int
	healthyOK      int
	catalogRecv    int
	catalogOK      int
	lastCatalogErr error

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, gatewayActors []*actor.PID, mqttActor *actor.PID, pollerActors []*actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:         config,
		gatewayActors:  gatewayActors,
		mqttActor:      mqttActor,
		pollerActors:   pollerActors,
		eventStream:    eventStream,
		unitSignatures: make(map[string]string),
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// check every gateway transport and the MQTT actor healthy
		state.healthyRecv = 0
		state.healthyOK = 0
		for _, pid := range state.gatewayActors {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_GATEWAY,
					Healthy: false,
				}
			})
		}
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			state.healthyOK++
		}
		if state.healthyRecv == len(state.gatewayActors)+1 {

			if state.healthyOK == state.healthyRecv {
				// force a refresh on every poller so the full catalogs are available
				for _, pid := range state.pollerActors {
					actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.RefreshDataRequest{ForceMapping: true}, 30*time.Second), func(err error) any {
						return domain.RefreshDataResponse{
							ActorResponseMixIn: domain.ActorResponseMixIn{
								ResponseError: err,
							},
						}
					})
				}
				state.behavior.Become(state.WaitingCatalogReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Gateway Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.CatalogUpdatedEvent:
		configId := msg.Catalog.Gateway.ConfigId
		signature := unitSetSignature(msg.Catalog)
		if signature != state.unitSignatures[configId] {
			state.logger.Info("hadiscovery@done unit set changed, republishing discovery",
				zap.String("gateway", configId), zap.String("units", signature))
			state.publishCatalogDiscovery(ctx, msg.Catalog)
		}
	case *actor.Restarting:
		state.unsubscribe()
	case *actor.Stopping:
		state.unsubscribe()
	default:
		state.logger.Debug("hadiscovery@done: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingCatalogReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RefreshDataResponse:
		state.catalogRecv++
		if msg.HasResponseError() {
			// keep going, other gateways can still be announced
			state.logger.Warn("hadiscovery@catalog: refresh failed", zap.Error(msg.GetResponseError()))
			state.lastCatalogErr = msg.GetResponseError()
		} else {
			state.logger.Debug("hadiscovery@catalog: RefreshDataResponse",
				zap.Int("readings", len(msg.Catalog.Readings)), zap.Int("units", len(msg.Catalog.Units)))
			if state.catalogOK == 0 {
				state.publishBridgeDiscovery(ctx)
			}
			state.catalogOK++
			state.publishCatalogDiscovery(ctx, msg.Catalog)
		}
		if state.catalogRecv == len(state.pollerActors) {
			if state.catalogOK == 0 {
				panic(state.lastCatalogErr)
			}
			// watch later refresh cycles for new or re-registered units
			state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
				if evt, ok := value.(domain.CatalogUpdatedEvent); ok {
					ctx.Send(ctx.Self(), evt)
				}
			})
			state.behavior.Become(state.Done)
		}

	default:
		state.logger.Debug("hadiscovery@catalog: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) publishBridgeDiscovery(ctx actor.Context) {
	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: events.BridgeSensors(bridgeDevice),
	})
}

func (state *HADiscoveryActor) publishCatalogDiscovery(ctx actor.Context, catalog *domain.TelemetryCatalog) {
	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: events.CatalogSensors(catalog, bridgeDevice),
	})
	state.unitSignatures[catalog.Gateway.ConfigId] = unitSetSignature(catalog)
}

func (state *HADiscoveryActor) unsubscribe() {
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
}

func unitSetSignature(catalog *domain.TelemetryCatalog) string {
	ids := make([]string, 0, len(catalog.Units))
	for _, u := range catalog.Units {
		ids = append(ids, u.HardwareId)
	}
	return strings.Join(ids, ",")
}
