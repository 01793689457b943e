package actor

import (
	"errors"
	"fmt"
	"time"

	"ecowitt2mqtt/internal/config"
	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/core/events"
	"ecowitt2mqtt/internal/core/mapper"
	"ecowitt2mqtt/internal/core/telemetry"
	"ecowitt2mqtt/internal/metrics"
	. "ecowitt2mqtt/internal/util/actorutil"
	"ecowitt2mqtt/pkg/ecowitt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor runs the refresh cycle for one gateway: it serializes
// telemetry polls, time-gates mapping refreshes inside the poll tick
// and coalesces concurrent manual refreshes into the in-flight cycle.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	gatewayActor *actor.PID
	gateway      config.GatewayConfig
	eventStream  *eventstream.EventStream
	metrics      *metrics.BridgeMetrics

	mapper            *mapper.Mapper
	catalog           *domain.TelemetryCatalog
	gatewayInfo       domain.GatewayInfo
	infoLoaded        bool
	authFailed        bool
	lastMappingUpdate time.Time
	forceMapping      bool
	cycleStart        time.Time

	pendingData    []*actor.PID
	pendingMapping []*actor.PID

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(gateway config.GatewayConfig, gatewayActor *actor.PID, eventStream *eventstream.EventStream,
	bridgeMetrics *metrics.BridgeMetrics, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		gateway:      gateway,
		gatewayActor: gatewayActor,
		behavior:     actor.NewBehavior(),
		stash:        &Stash{},
		logger:       ActorLogger(domain.ACTOR_ID_POLLER, logger).With(zap.String("gateway", gateway.ConfigId())),
		eventStream:  eventStream,
		metrics:      bridgeMetrics,
		mapper:       mapper.NewMapper(),
		gatewayInfo: domain.GatewayInfo{
			ConfigId: gateway.ConfigId(),
			Host:     gateway.Host,
			Model:    "Unknown",
		},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		if state.gateway.PollIntervalMillis > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(time.Duration(state.gateway.PollIntervalMillis)*time.Millisecond, ctx.Self(), pollTick{})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		healthState := "idle"
		if state.authFailed {
			healthState = "auth_failed"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: !state.authFailed,
			State:   healthState,
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		state.startCycle(ctx, nil)
		// schedule next tick
		if state.scheduler != nil {
			state.scheduler.RequestOnce(time.Duration(state.gateway.PollIntervalMillis)*time.Millisecond, ctx.Self(), pollTick{})
		}
	case domain.RefreshDataRequest:
		state.logger.Debug("poller@default RefreshDataRequest")
		if msg.ForceMapping {
			state.forceMapping = true
		}
		state.startCycle(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.RefreshMappingRequest:
		state.logger.Debug("poller@default RefreshMappingRequest")
		state.forceMapping = true
		state.pendingMapping = append(state.pendingMapping, ForRequest(msg).ReplyTo(ctx))
		state.startCycle(ctx, nil)
	case domain.GetCatalogRequest:
		ctx.Respond(domain.GetCatalogResponse{Catalog: state.catalog})
	case domain.GetReadingRequest:
		ctx.Respond(state.lookupReading(msg.EntityKey))
	case domain.GetHardwareUnitsRequest:
		ctx.Respond(domain.GetHardwareUnitsResponse{Units: state.mapper.Units()})
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// startCycle begins one serialized refresh pass. The cycle walks
// version (once), mapping (when due) and live data, each as a request
// to the gateway actor answered back into PollingReceive.
func (state *PollerActor) startCycle(ctx actor.Context, respondTo *actor.PID) {
	if respondTo != nil {
		state.pendingData = append(state.pendingData, respondTo)
	}
	state.cycleStart = time.Now()
	state.behavior.BecomeStacked(state.PollingReceive)
	if !state.infoLoaded {
		state.requestVersion(ctx)
		return
	}
	state.advanceAfterInfo(ctx)
}

func (state *PollerActor) PollingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RefreshDataRequest:
		// coalesce into the in-flight cycle
		state.logger.Debug("poller@polling RefreshDataRequest coalesced")
		state.pendingData = append(state.pendingData, ForRequest(msg).ReplyTo(ctx))
	case domain.GetGatewayVersionResponse:
		if msg.HasResponseError() {
			state.logger.Warn("poller@polling gateway info unavailable", zap.Error(msg.GetResponseError()))
		} else if msg.Version != nil {
			state.gatewayInfo.Model = telemetry.GatewayModel(msg.Version.Version, msg.Version.StationType)
			state.gatewayInfo.Firmware = msg.Version.Version
			state.infoLoaded = true
		}
		state.advanceAfterInfo(ctx)
	case domain.GetSensorMappingsResponse:
		if msg.HasResponseError() {
			// non-fatal: keep the stale table and continue the cycle
			state.logger.Warn("poller@polling mapping refresh failed, using stale table", zap.Error(msg.GetResponseError()))
			state.countMapping(false)
			state.respondMapping(ctx, state.mapper.Stats(), msg.GetResponseError())
		} else {
			stats := state.mapper.UpdateMapping(msg.Entries)
			state.lastMappingUpdate = time.Now()
			state.logger.Info("poller@polling mapping updated", zap.String("stats", stats.String()))
			state.countMapping(true)
			if state.metrics != nil {
				state.metrics.HardwareUnits.Set(float64(stats.Units))
			}
			state.respondMapping(ctx, stats, nil)
		}
		state.forceMapping = false
		state.requestLiveData(ctx)
	case domain.GetLiveDataResponse:
		state.finishCycle(ctx, msg)
	default:
		state.logger.Debug("poller@polling: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) advanceAfterInfo(ctx actor.Context) {
	if state.mappingDue() {
		state.requestMappings(ctx)
		return
	}
	state.requestLiveData(ctx)
}

func (state *PollerActor) mappingDue() bool {
	if state.forceMapping || state.lastMappingUpdate.IsZero() {
		return true
	}
	interval := time.Duration(state.gateway.MappingIntervalMillis) * time.Millisecond
	return time.Since(state.lastMappingUpdate) >= interval
}

func (state *PollerActor) requestVersion(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gatewayActor, domain.GetGatewayVersionRequest{}, 15*time.Second), func(err error) any {
		return domain.GetGatewayVersionResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *PollerActor) requestMappings(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gatewayActor, domain.GetSensorMappingsRequest{}, 15*time.Second), func(err error) any {
		return domain.GetSensorMappingsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *PollerActor) requestLiveData(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.gatewayActor, domain.GetLiveDataRequest{}, 15*time.Second), func(err error) any {
		return domain.GetLiveDataResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *PollerActor) finishCycle(ctx actor.Context, msg domain.GetLiveDataResponse) {
	if msg.HasResponseError() {
		err := msg.GetResponseError()
		if errors.Is(err, ecowitt.ErrAuthentication) {
			// credentials rejected, not retriable until reconfigured
			state.logger.Error("poller@polling authentication failed, check gateway password", zap.Error(err))
			state.authFailed = true
			state.eventStream.Publish(domain.BridgeStateUpdateEvent{
				SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: events.SENSOR_ID_BRIDGE_STATE},
				Value:                  false,
			})
		} else {
			// retriable: previous catalog stays visible
			state.logger.Warn("poller@polling update failed", zap.Error(err))
		}
		state.countPoll(false)
		state.respondData(ctx, nil, err)
	} else {
		state.authFailed = false
		catalog := telemetry.Assemble(msg.LiveData, state.mapper, state.gatewayInfo,
			state.gateway.IncludeInactive, time.Now())
		state.catalog = catalog
		state.countPoll(true)
		if state.metrics != nil {
			state.metrics.ReadingsAssembled.Set(float64(len(catalog.Readings)))
		}

		state.eventStream.Publish(domain.CatalogUpdatedEvent{Catalog: catalog})
		for _, ev := range events.CatalogToUpdateEvents(catalog) {
			state.eventStream.Publish(ev)
		}
		state.respondData(ctx, catalog, nil)
	}
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func (state *PollerActor) respondData(ctx actor.Context, catalog *domain.TelemetryCatalog, err error) {
	for _, pid := range state.pendingData {
		if pid == nil {
			continue
		}
		ctx.Send(pid, domain.RefreshDataResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Catalog: catalog,
		})
	}
	state.pendingData = nil
}

func (state *PollerActor) respondMapping(ctx actor.Context, stats domain.MappingStats, err error) {
	for _, pid := range state.pendingMapping {
		if pid == nil {
			continue
		}
		ctx.Send(pid, domain.RefreshMappingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Stats: stats,
		})
	}
	state.pendingMapping = nil
}

func (state *PollerActor) lookupReading(entityKey string) domain.GetReadingResponse {
	if state.catalog == nil {
		return domain.GetReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: errors.New("no catalog available yet"),
			},
		}
	}
	reading, ok := state.catalog.Reading(entityKey)
	if !ok {
		return domain.GetReadingResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: fmt.Errorf("unknown entity key %s", entityKey),
			},
		}
	}
	return domain.GetReadingResponse{Reading: &reading}
}

func (state *PollerActor) countPoll(ok bool) {
	if state.metrics == nil {
		return
	}
	if ok {
		state.metrics.PollsTotal.WithLabelValues(metrics.ResultOK).Inc()
	} else {
		state.metrics.PollsTotal.WithLabelValues(metrics.ResultError).Inc()
	}
	state.metrics.PollDuration.Observe(time.Since(state.cycleStart).Seconds())
}

func (state *PollerActor) countMapping(ok bool) {
	if state.metrics == nil {
		return
	}
	if ok {
		state.metrics.MappingRefreshes.WithLabelValues(metrics.ResultOK).Inc()
	} else {
		state.metrics.MappingRefreshes.WithLabelValues(metrics.ResultError).Inc()
	}
}
