package actor

import (
	"testing"
	"time"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util/actorutil"
	"ecowitt2mqtt/pkg/ecowitt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetLiveDataGatewayActor(t *testing.T) {

	assert := assert.New(t)

	client := ecowitt.NewTestClient()
	client.LiveDataFixture = &ecowitt.LiveData{
		CommonList: []ecowitt.LiveDataItem{
			{ID: "0x02", Val: "69.4 F"},
		},
	}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewGatewayActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetLiveDataRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetLiveDataResponse)

	assert.False(resp.HasResponseError())
	assert.Len(resp.LiveData.CommonList, 1)
	assert.Equal(resp.LiveData.CommonList[0].ID, "0x02")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetSensorMappingsGatewayActor(t *testing.T) {

	assert := assert.New(t)

	client := ecowitt.NewTestClient()
	client.MappingFixture = []ecowitt.RawMappingEntry{
		{ID: "C43A", Img: "wh51", Channel: "1", Signal: "4"},
	}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewGatewayActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetSensorMappingsRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetSensorMappingsResponse)

	assert.False(resp.HasResponseError())
	assert.Len(resp.Entries, 1)
	assert.Equal(resp.Entries[0].ID, "C43A")

	context.Stop(pid)

	as.Shutdown()
}

func TestGatewayActorErrorResponse(t *testing.T) {

	assert := assert.New(t)

	client := ecowitt.NewTestClient()
	client.LiveDataErr = ecowitt.ErrConnection

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewGatewayActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetLiveDataRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetLiveDataResponse)

	assert.True(resp.HasResponseError())
	assert.ErrorIs(resp.GetResponseError(), ecowitt.ErrConnection)

	context.Stop(pid)

	as.Shutdown()
}

func TestGatewayActorHealth(t *testing.T) {

	client := ecowitt.NewTestClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewGatewayActor(client, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)
	assert.Equal(t, GATEWAY_ACTOR_ID, resp.Id)

	context.Stop(pid)

	as.Shutdown()
}
