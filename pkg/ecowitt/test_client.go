package ecowitt

import (
	"context"
	"sync"
	"time"
)

// TestClient is a canned in-memory Client for tests.
type TestClient struct {
	mu sync.Mutex

	LiveDataFixture *LiveData
	MappingFixture  []RawMappingEntry
	VersionFixture  *VersionInfo

	// LiveDataDelay simulates a slow gateway response.
	LiveDataDelay time.Duration

	LiveDataErr error
	MappingErr  error
	VersionErr  error

	LiveDataCalls int
	MappingCalls  int
	VersionCalls  int
}

var _ Client = (*TestClient)(nil)

func NewTestClient() *TestClient {
	return &TestClient{
		LiveDataFixture: &LiveData{},
		VersionFixture:  &VersionInfo{Version: "GW1100A_V2.4.3", StationType: "GW1100A"},
	}
}

func (c *TestClient) LiveData(_ context.Context) (*LiveData, error) {
	if c.LiveDataDelay > 0 {
		time.Sleep(c.LiveDataDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LiveDataCalls++
	if c.LiveDataErr != nil {
		return nil, c.LiveDataErr
	}
	return c.LiveDataFixture, nil
}

func (c *TestClient) SensorMappings(_ context.Context) ([]RawMappingEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MappingCalls++
	if c.MappingErr != nil {
		return nil, c.MappingErr
	}
	return c.MappingFixture, nil
}

func (c *TestClient) Version(_ context.Context) (*VersionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.VersionCalls++
	if c.VersionErr != nil {
		return nil, c.VersionErr
	}
	return c.VersionFixture, nil
}

func (c *TestClient) TestConnection(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}

func (c *TestClient) Close() {}

// Calls returns the per-endpoint call counters.
func (c *TestClient) Calls() (liveData, mappings, version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LiveDataCalls, c.MappingCalls, c.VersionCalls
}
