package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ClientConfig configures the HTTP entity-service client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration // per-request; 0 means 10s
	RetryMax int           // 0 means 4
}

// Client talks to the entity-configuration REST service.
type Client struct {
	base string
	http *retryablehttp.Client
}

// NewClient builds a retrying HTTP client for the entity service.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("entities: base URL is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = stdlog.New(io.Discard, "", 0)
	retryClient.RetryMax = cfg.RetryMax
	if retryClient.RetryMax <= 0 {
		retryClient.RetryMax = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryClient.HTTPClient.Timeout = timeout

	return &Client{base: base, http: retryClient}, nil
}

func (c *Client) QueryRadius(ctx context.Context, lon, lat, radiusMiles float64) ([]Entity, error) {
	q := url.Values{}
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("miles", strconv.FormatFloat(radiusMiles, 'f', -1, 64))
	var out []Entity
	if err := c.getJSON(ctx, "/query/radius?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) QueryDownstream(ctx context.Context, lon, lat float64, param string) ([]Entity, error) {
	return c.queryGraph(ctx, "downstream", lon, lat, param)
}

func (c *Client) QueryUpstream(ctx context.Context, lon, lat float64, param string) ([]Entity, error) {
	return c.queryGraph(ctx, "upstream", lon, lat, param)
}

func (c *Client) queryGraph(ctx context.Context, direction string, lon, lat float64, param string) ([]Entity, error) {
	q := url.Values{}
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("param", param)
	var out []Entity
	if err := c.getJSON(ctx, "/query/"+direction+"?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetByID(ctx context.Context, id uuid.UUID) (*Entity, error) {
	var out Entity
	if err := c.getJSON(ctx, "/entities/"+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	q := url.Values{}
	q.Set("ids", strings.Join(strs, ","))
	var out []Entity
	if err := c.getJSON(ctx, "/entities?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSite(ctx context.Context, id uuid.UUID) (*Entity, error) {
	var out Entity
	if err := c.getJSON(ctx, "/sites/"+id.String(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("entities: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("entities: %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("entities: %s: decode: %w", path, err)
	}
	return nil
}
