package server

import (
	"net/http"
	"time"

	"ecowitt2mqtt/internal/core/domain"
	"ecowitt2mqtt/internal/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/sensors", s.ListSensorsHandler)
	e.GET("/sensors/:key", s.GetSensorHandler)
	e.GET("/units", s.ListUnitsHandler)
	e.POST("/refresh/data", s.RefreshDataHandler)
	e.POST("/refresh/mapping", s.RefreshMappingHandler)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return e
}

type sensorReadingJSON struct {
	EntityKey  string `json:"entity_key"`
	WireKey    string `json:"wire_key"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Unit       string `json:"unit,omitempty"`
	Category   string `json:"category"`
	HardwareId string `json:"hardware_id,omitempty"`
	SensorType string `json:"sensor_type,omitempty"`
	Channel    string `json:"channel,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

type hardwareUnitJSON struct {
	HardwareId string `json:"hardware_id"`
	SensorType string `json:"sensor_type"`
	Name       string `json:"name,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Battery    string `json:"battery,omitempty"`
	Signal     string `json:"signal,omitempty"`
	Active     bool   `json:"active"`
	Synthetic  bool   `json:"synthetic,omitempty"`
}

func readingToJSON(r domain.SensorReading) sensorReadingJSON {
	return sensorReadingJSON{
		EntityKey:  r.EntityKey,
		WireKey:    r.WireKey,
		Name:       r.Name,
		Value:      r.Value.Payload(),
		Unit:       r.Unit,
		Category:   r.Category,
		HardwareId: r.HardwareId,
		SensorType: r.SensorType,
		Channel:    r.Channel,
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ListSensorsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetAllCatalogsRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetAllCatalogsResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "catalog unavailable")
	}
	if len(response.Catalogs) == 0 {
		return c.String(http.StatusServiceUnavailable, "no telemetry yet")
	}
	var readings []sensorReadingJSON
	for _, catalog := range response.Catalogs {
		for _, r := range catalog.Readings {
			readings = append(readings, readingToJSON(r))
		}
	}
	return c.JSON(http.StatusOK, readings)
}

func (s *Server) GetSensorHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetReadingRequest{EntityKey: c.Param("key")}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetReadingResponse)
	if !ok {
		return c.String(http.StatusServiceUnavailable, "catalog unavailable")
	}
	if response.HasResponseError() || response.Reading == nil {
		return c.String(http.StatusNotFound, "unknown sensor")
	}
	return c.JSON(http.StatusOK, readingToJSON(*response.Reading))
}

func (s *Server) ListUnitsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetHardwareUnitsRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetHardwareUnitsResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "mapping unavailable")
	}
	units := make([]hardwareUnitJSON, 0, len(response.Units))
	for _, u := range response.Units {
		units = append(units, hardwareUnitJSON{
			HardwareId: u.HardwareId,
			SensorType: u.SensorType,
			Name:       u.Name,
			Channel:    u.Channel,
			Battery:    u.Battery,
			Signal:     u.Signal,
			Active:     u.Active,
			Synthetic:  u.Synthetic,
		})
	}
	return c.JSON(http.StatusOK, units)
}

func (s *Server) RefreshDataHandler(c echo.Context) error {
	force := c.QueryParam("force_mapping") == "true"
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RefreshAllDataRequest{ForceMapping: force}, 40*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.RefreshAllDataResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "refresh failed")
	}
	status := http.StatusOK
	if response.Refreshed == 0 && response.Failed > 0 {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"refreshed": response.Refreshed,
		"failed":    response.Failed,
	})
}

func (s *Server) RefreshMappingHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RefreshAllMappingRequest{}, 40*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.RefreshAllMappingResponse)
	if !ok || response.HasResponseError() {
		return c.String(http.StatusServiceUnavailable, "mapping refresh failed")
	}
	status := http.StatusOK
	if response.Refreshed == 0 && response.Failed > 0 {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"refreshed": response.Refreshed,
		"failed":    response.Failed,
	})
}
