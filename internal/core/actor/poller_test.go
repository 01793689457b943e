package actor

import (
	"errors"
	"testing"
	"time"

	adactor "ecowitt2mqtt/internal/adapter/actor"
	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util"
	"ecowitt2mqtt/internal/util/actorutil"
	"ecowitt2mqtt/pkg/ecowitt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func pollerTestLiveData() *ecowitt.LiveData {
	return &ecowitt.LiveData{
		CommonList: []ecowitt.LiveDataItem{
			{ID: "0x02", Val: "72.5"},
			{ID: "0x07", Val: "45%"},
		},
		WH25: []ecowitt.WH25Item{
			{InTemp: "71.2", Unit: "F", InHumi: "48%", Abs: "29.40 inHg", Rel: "29.86 inHg"},
		},
		Soil: []ecowitt.SoilChannel{
			{Channel: "1", Name: "Garden", Battery: "4", Humidity: "53%"},
		},
	}
}

func pollerTestMapping() []ecowitt.RawMappingEntry {
	return []ecowitt.RawMappingEntry{
		{ID: "C43A21B0", Img: "wh51", Type: "10", Name: "Soil moisture CH1", Channel: "1", Batt: "4", Signal: "4"},
	}
}

func spawnPollerForTest(t *testing.T, client *ecowitt.TestClient, stream *eventstream.EventStream) (*actor.ActorSystem, *actor.RootContext, *actor.PID, *actor.PID) {
	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	gatewayProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewGatewayActor(client, logger)
	})
	gatewayPID, err := context.SpawnNamed(gatewayProps, "gateway-test")
	if err != nil {
		t.Fatal(err)
	}

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(cfg.Gateways[0], gatewayPID, stream, nil, logger)
	})
	pollerPID, err := context.SpawnNamed(pollerProps, "poller-test")
	if err != nil {
		t.Fatal(err)
	}

	return as, context, gatewayPID, pollerPID
}

func TestPollerRefreshData(t *testing.T) {

	client := ecowitt.NewTestClient()
	client.LiveDataFixture = pollerTestLiveData()
	client.MappingFixture = pollerTestMapping()

	stream := &eventstream.EventStream{}
	as, context, gatewayPID, pollerPID := spawnPollerForTest(t, client, stream)

	time.Sleep(1 * time.Second)

	res, err := context.RequestFuture(pollerPID, domain.RefreshDataRequest{ForceMapping: true}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	refreshResp, ok := res.(domain.RefreshDataResponse)
	assert.True(t, ok)
	assert.False(t, refreshResp.HasResponseError())
	assert.NotNil(t, refreshResp.Catalog)

	var soil *domain.SensorReading
	for i := range refreshResp.Catalog.Readings {
		if refreshResp.Catalog.Readings[i].WireKey == "soilmoisture1" {
			soil = &refreshResp.Catalog.Readings[i]
		}
	}
	if assert.NotNil(t, soil, "soilmoisture1 reading present") {
		assert.Equal(t, "C43A21B0", soil.HardwareId)
		assert.Equal(t, domain.IntValue(53), soil.Value)
	}

	// cached catalog served without another transport call
	liveBefore, _, _ := client.Calls()
	res, err = context.RequestFuture(pollerPID, domain.GetCatalogRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	catalogResp, ok := res.(domain.GetCatalogResponse)
	assert.True(t, ok)
	assert.Equal(t, refreshResp.Catalog, catalogResp.Catalog)
	liveAfter, _, _ := client.Calls()
	assert.Equal(t, liveBefore, liveAfter)

	res, err = context.RequestFuture(pollerPID, domain.GetHardwareUnitsRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	unitsResp, ok := res.(domain.GetHardwareUnitsResponse)
	assert.True(t, ok)
	assert.Len(t, unitsResp.Units, 1)
	assert.Equal(t, "wh51", unitsResp.Units[0].SensorType)

	context.Stop(pollerPID)
	context.Stop(gatewayPID)
	as.Shutdown()
}

func TestPollerCoalescesConcurrentRefreshes(t *testing.T) {

	client := ecowitt.NewTestClient()
	client.LiveDataFixture = pollerTestLiveData()
	client.MappingFixture = pollerTestMapping()
	client.LiveDataDelay = 500 * time.Millisecond

	stream := &eventstream.EventStream{}
	as, context, gatewayPID, pollerPID := spawnPollerForTest(t, client, stream)

	time.Sleep(1 * time.Second)

	first := context.RequestFuture(pollerPID, domain.RefreshDataRequest{}, 15*time.Second)
	time.Sleep(100 * time.Millisecond)
	second := context.RequestFuture(pollerPID, domain.RefreshDataRequest{}, 15*time.Second)

	firstRes, err := first.Result()
	if err != nil {
		t.Error(err)
	}
	secondRes, err := second.Result()
	if err != nil {
		t.Error(err)
	}

	firstResp, ok := firstRes.(domain.RefreshDataResponse)
	assert.True(t, ok)
	assert.False(t, firstResp.HasResponseError())
	secondResp, ok := secondRes.(domain.RefreshDataResponse)
	assert.True(t, ok)
	assert.False(t, secondResp.HasResponseError())

	liveCalls, _, _ := client.Calls()
	assert.Equal(t, 1, liveCalls, "both requests served by one poll")

	context.Stop(pollerPID)
	context.Stop(gatewayPID)
	as.Shutdown()
}

func TestPollerKeepsStaleMappingOnRefreshFailure(t *testing.T) {

	client := ecowitt.NewTestClient()
	client.LiveDataFixture = pollerTestLiveData()
	client.MappingFixture = pollerTestMapping()

	stream := &eventstream.EventStream{}
	as, context, gatewayPID, pollerPID := spawnPollerForTest(t, client, stream)

	time.Sleep(1 * time.Second)

	_, err := context.RequestFuture(pollerPID, domain.RefreshDataRequest{ForceMapping: true}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}

	client.MappingErr = errors.New("mapping endpoint down")

	res, err := context.RequestFuture(pollerPID, domain.RefreshMappingRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	mappingResp, ok := res.(domain.RefreshMappingResponse)
	assert.True(t, ok)
	assert.True(t, mappingResp.HasResponseError())
	assert.Equal(t, 1, mappingResp.Stats.Units, "stale table survives the failed refresh")

	res, err = context.RequestFuture(pollerPID, domain.GetHardwareUnitsRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	unitsResp, ok := res.(domain.GetHardwareUnitsResponse)
	assert.True(t, ok)
	assert.Len(t, unitsResp.Units, 1)

	context.Stop(pollerPID)
	context.Stop(gatewayPID)
	as.Shutdown()
}

func TestPollerPublishesUpdateEvents(t *testing.T) {

	client := ecowitt.NewTestClient()
	client.LiveDataFixture = pollerTestLiveData()
	client.MappingFixture = pollerTestMapping()

	stream := &eventstream.EventStream{}
	events := make(chan any, 128)
	sub := stream.Subscribe(func(evt any) {
		events <- evt
	})
	defer stream.Unsubscribe(sub)

	as, context, gatewayPID, pollerPID := spawnPollerForTest(t, client, stream)

	time.Sleep(1 * time.Second)

	_, err := context.RequestFuture(pollerPID, domain.RefreshDataRequest{ForceMapping: true}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
	}

	time.Sleep(200 * time.Millisecond)
	close(events)

	var catalogEvents, updateEvents int
	for evt := range events {
		switch evt.(type) {
		case domain.CatalogUpdatedEvent:
			catalogEvents++
		case domain.SensorUpdateEvent:
			updateEvents++
		}
	}
	assert.Equal(t, 1, catalogEvents)
	assert.Greater(t, updateEvents, 0, "per-reading update events published")

	context.Stop(pollerPID)
	context.Stop(gatewayPID)
	as.Shutdown()
}
