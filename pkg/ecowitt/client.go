package ecowitt

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the gateway transport interface consumed by the adapter actor.
type Client interface {
	// LiveData fetches the current telemetry snapshot.
	LiveData(ctx context.Context) (*LiveData, error)
	// SensorMappings fetches the hardware mapping snapshot. The gateway
	// splits it over two pages; both are fetched and concatenated.
	SensorMappings(ctx context.Context) ([]RawMappingEntry, error)
	// Version fetches firmware/model info.
	Version(ctx context.Context) (*VersionInfo, error)
	// TestConnection verifies reachability and credentials.
	TestConnection(ctx context.Context) error
	Close()
}

type HTTPClient struct {
	host     string
	password string
	client   *http.Client
	timeout  time.Duration
	authed   bool
	logger   *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

func CreateHTTPClient(host, password string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		host:     host,
		password: password,
		timeout:  timeout,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: logger.With(zap.String("component", "ecowitt_client")),
	}, nil
}

func (c *HTTPClient) LiveData(ctx context.Context) (*LiveData, error) {
	var data LiveData
	if err := c.getJSON(ctx, "/get_livedata_info", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) SensorMappings(ctx context.Context) ([]RawMappingEntry, error) {
	var all []RawMappingEntry
	for _, page := range []string{"1", "2"} {
		var entries []RawMappingEntry
		err := c.getJSON(ctx, "/get_sensors_info", url.Values{"page": {page}}, &entries)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (c *HTTPClient) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, "/get_version", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) TestConnection(ctx context.Context) error {
	_, err := c.Version(ctx)
	return err
}

func (c *HTTPClient) Close() {
	c.client.CloseIdleConnections()
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.password != "" && !c.authed {
		if err := c.login(ctx); err != nil {
			return err
		}
	}
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %s", ErrConnection, path, err)
	}
	return nil
}

// login posts the md5 of the configured password the way the gateway web UI
// does. The session token comes back as a cookie held by the client jar.
func (c *HTTPClient) login(ctx context.Context) error {
	hash := md5.Sum([]byte(c.password))
	form := url.Values{"pwd": {hex.EncodeToString(hash[:])}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/set_login_info"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: login rejected (%d)", ErrAuthentication, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login status %d", ErrConnection, resp.StatusCode)
	}
	c.authed = true
	return nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.endpoint(path)
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", u, query.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnection, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.authed = false
		return nil, fmt.Errorf("%w: %s (%d)", ErrAuthentication, path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %s status %d", ErrConnection, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnection, err)
	}
	return body, nil
}

func (c *HTTPClient) endpoint(path string) string {
	host := strings.TrimSuffix(c.host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + path
}
