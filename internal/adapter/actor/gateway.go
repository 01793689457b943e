package actor

import (
	"context"
	"fmt"
	"time"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util/actorutil"
	"ecowitt2mqtt/pkg/ecowitt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	GATEWAY_ACTOR_ID = "gateway"

	gatewayRequestTimeout = 10 * time.Second
)

type GatewayActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   ecowitt.Client
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewGatewayActor(client ecowitt.Client, logger *zap.Logger) *GatewayActor {
	act := &GatewayActor{
		client:   client,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(GATEWAY_ACTOR_ID, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *GatewayActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GatewayActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("gateway@starting started")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.client.Close()
	default:
		state.logger.Debug("gateway@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GatewayActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("gateway@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      GATEWAY_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetLiveDataRequest:
		state.logger.Debug("gateway@default: GetLiveDataRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getLiveData),
			mapTaskResult[domain.GetLiveDataResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetLiveDataResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(gatewayRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case domain.GetSensorMappingsRequest:
		state.logger.Debug("gateway@default: GetSensorMappingsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getSensorMappings),
			mapTaskResult[domain.GetSensorMappingsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetSensorMappingsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(gatewayRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case domain.GetGatewayVersionRequest:
		state.logger.Debug("gateway@default: GetGatewayVersionRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getVersion),
			mapTaskResult[domain.GetGatewayVersionResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetGatewayVersionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(gatewayRequestTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingGateway)
	case *actor.Stopping:
		state.client.Close()
	default:
		state.logger.Debug("gateway@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GatewayActor) WaitingGateway(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("gateway@WaitingGateway backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.client.Close()
	default:
		state.logger.Debug("gateway@WaitingGateway stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *GatewayActor) getLiveData() (*domain.GetLiveDataResponse, error) {
	data, err := a.client.LiveData(context.Background())
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetLiveDataResponse{
		LiveData: data,
	}, nil
}

func (a *GatewayActor) getSensorMappings() (*domain.GetSensorMappingsResponse, error) {
	entries, err := a.client.SensorMappings(context.Background())
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetSensorMappingsResponse{
		Entries: entries,
	}, nil
}

func (a *GatewayActor) getVersion() (*domain.GetGatewayVersionResponse, error) {
	info, err := a.client.Version(context.Background())
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetGatewayVersionResponse{
		Version: info,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
