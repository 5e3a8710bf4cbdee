// Package marinetraffic fetches vessel positions from a MarineTraffic
// collector endpoint.
package marinetraffic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/models"
)

// Client fetches the latest MarineTraffic positions for a set of vessels.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// NewClient creates a MarineTraffic client. The endpoint answers a GET with
// a JSON array of positions for the requested MMSIs.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		log:     log.WithComponent("marinetraffic_client"),
	}
}

// FetchPositions returns one position per vessel the endpoint reports.
func (c *Client) FetchPositions(ctx context.Context, vessels []models.Vessel) ([]models.MarineTrafficPosition, error) {
	if len(vessels) == 0 {
		return []models.MarineTrafficPosition{}, nil
	}

	mmsis := make([]string, 0, len(vessels))
	for _, v := range vessels {
		mmsis = append(mmsis, strconv.FormatInt(v.MMSI, 10))
	}
	params := url.Values{"mmsi": {strings.Join(mmsis, ",")}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("positions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("marinetraffic API error: status %d: %s", resp.StatusCode, body)
	}

	var positions []models.MarineTrafficPosition
	if err := json.NewDecoder(resp.Body).Decode(&positions); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.log.Debug("Fetched marinetraffic positions", map[string]interface{}{
		"requested": len(vessels),
		"received":  len(positions),
	})

	if positions == nil {
		positions = []models.MarineTrafficPosition{}
	}
	return positions, nil
}
