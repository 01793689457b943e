package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "ecowitt2mqtt/internal/adapter/actor"
	"ecowitt2mqtt/internal/config"
	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/util"
	"ecowitt2mqtt/pkg/ecowitt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func spawnMasterForTest(t *testing.T, cfg config.Config, clients map[string]*ecowitt.TestClient) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	t.Helper()

	as := actor.NewActorSystem()
	context := as.Root

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func(gw config.GatewayConfig) *adactor.GatewayActor {
			return adactor.NewGatewayActor(clients[gw.ConfigId()], logger)
		}, func(stream *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, nil, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Fatal(err)
	}
	return as, context, pid
}

func twoGatewayTestConfig() config.Config {
	cfg := util.LoadTestConfig()
	first := cfg.Gateways[0]
	second := first
	first.Host = "10.0.0.1"
	second.Host = "10.0.0.2"
	cfg.Gateways = []config.GatewayConfig{first, second}
	return cfg
}

func TestMasterActor(t *testing.T) {

	cfg := util.LoadTestConfig()
	client := ecowitt.NewTestClient()
	client.LiveDataFixture = pollerTestLiveData()
	client.MappingFixture = pollerTestMapping()

	as, context, pid := spawnMasterForTest(t, cfg, map[string]*ecowitt.TestClient{
		cfg.Gateways[0].ConfigId(): client,
	})

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	res, err = context.RequestFuture(pid, domain.RefreshAllDataRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	refreshResp, ok := res.(domain.RefreshAllDataResponse)
	assert.True(t, ok)
	assert.Equal(t, 1, refreshResp.Refreshed)
	assert.Equal(t, 0, refreshResp.Failed)

	res, err = context.RequestFuture(pid, domain.GetAllCatalogsRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	catalogResp, ok := res.(domain.GetAllCatalogsResponse)
	assert.True(t, ok)
	assert.Len(t, catalogResp.Catalogs, 1)

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterRefreshAllMultipleGateways(t *testing.T) {

	cfg := twoGatewayTestConfig()

	firstClient := ecowitt.NewTestClient()
	firstClient.LiveDataFixture = pollerTestLiveData()
	firstClient.MappingFixture = pollerTestMapping()
	secondClient := ecowitt.NewTestClient()
	secondClient.LiveDataFixture = pollerTestLiveData()
	secondClient.MappingFixture = pollerTestMapping()

	as, context, pid := spawnMasterForTest(t, cfg, map[string]*ecowitt.TestClient{
		cfg.Gateways[0].ConfigId(): firstClient,
		cfg.Gateways[1].ConfigId(): secondClient,
	})

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.RefreshAllDataRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	refreshResp, ok := res.(domain.RefreshAllDataResponse)
	assert.True(t, ok)
	assert.Equal(t, 2, refreshResp.Refreshed)
	assert.Equal(t, 0, refreshResp.Failed)

	// both gateways were polled
	firstCalls, _, _ := firstClient.Calls()
	secondCalls, _, _ := secondClient.Calls()
	assert.Greater(t, firstCalls, 0)
	assert.Greater(t, secondCalls, 0)

	res, err = context.RequestFuture(pid, domain.GetAllCatalogsRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	catalogResp, ok := res.(domain.GetAllCatalogsResponse)
	assert.True(t, ok)
	assert.Len(t, catalogResp.Catalogs, 2)

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterRefreshAllPartialFailure(t *testing.T) {

	cfg := twoGatewayTestConfig()

	healthyClient := ecowitt.NewTestClient()
	healthyClient.LiveDataFixture = pollerTestLiveData()
	healthyClient.MappingFixture = pollerTestMapping()
	brokenClient := ecowitt.NewTestClient()
	brokenClient.LiveDataErr = fmt.Errorf("%w: connection refused", ecowitt.ErrConnection)

	as, context, pid := spawnMasterForTest(t, cfg, map[string]*ecowitt.TestClient{
		cfg.Gateways[0].ConfigId(): healthyClient,
		cfg.Gateways[1].ConfigId(): brokenClient,
	})

	time.Sleep(2 * time.Second)

	// one gateway down must not abort the rest
	res, err := context.RequestFuture(pid, domain.RefreshAllDataRequest{}, 30*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	refreshResp, ok := res.(domain.RefreshAllDataResponse)
	assert.True(t, ok)
	assert.Equal(t, 1, refreshResp.Refreshed)
	assert.Equal(t, 1, refreshResp.Failed)

	res, err = context.RequestFuture(pid, domain.GetAllCatalogsRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	catalogResp, ok := res.(domain.GetAllCatalogsResponse)
	assert.True(t, ok)
	assert.Len(t, catalogResp.Catalogs, 1)

	context.Stop(pid)

	as.Shutdown()
}
