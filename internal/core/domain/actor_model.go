package domain

import "ecowitt2mqtt/pkg/ecowitt"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_GATEWAY      = "gateway"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetLiveDataRequest struct {
	ActorRequestMixIn
}

type GetLiveDataResponse struct {
	ActorResponseMixIn
	LiveData *ecowitt.LiveData
}

type GetSensorMappingsRequest struct {
	ActorRequestMixIn
}

type GetSensorMappingsResponse struct {
	ActorResponseMixIn
	Entries []ecowitt.RawMappingEntry
}

type GetGatewayVersionRequest struct {
	ActorRequestMixIn
}

type GetGatewayVersionResponse struct {
	ActorResponseMixIn
	Version *ecowitt.VersionInfo
}

type RefreshDataRequest struct {
	ActorRequestMixIn
	ForceMapping bool
}

type RefreshDataResponse struct {
	ActorResponseMixIn
	Catalog *TelemetryCatalog
}

type RefreshMappingRequest struct {
	ActorRequestMixIn
}

type RefreshMappingResponse struct {
	ActorResponseMixIn
	Stats MappingStats
}

type RefreshAllDataRequest struct {
	ActorRequestMixIn
	ForceMapping bool
}

type RefreshAllDataResponse struct {
	ActorResponseMixIn
	Refreshed int
	Failed    int
}

type RefreshAllMappingRequest struct {
	ActorRequestMixIn
}

type RefreshAllMappingResponse struct {
	ActorResponseMixIn
	Refreshed int
	Failed    int
}

type GetAllCatalogsRequest struct {
	ActorRequestMixIn
}

type GetAllCatalogsResponse struct {
	ActorResponseMixIn
	Catalogs []*TelemetryCatalog
}

type GetCatalogRequest struct {
	ActorRequestMixIn
}

type GetCatalogResponse struct {
	ActorResponseMixIn
	Catalog *TelemetryCatalog
}

type GetReadingRequest struct {
	ActorRequestMixIn
	EntityKey string
}

type GetReadingResponse struct {
	ActorResponseMixIn
	Reading *SensorReading
}

type GetHardwareUnitsRequest struct {
	ActorRequestMixIn
}

type GetHardwareUnitsResponse struct {
	ActorResponseMixIn
	Units []HardwareUnit
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
