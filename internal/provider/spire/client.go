// Package spire fetches vessel nodes from the Spire Maritime GraphQL API.
package spire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stwalsh4118/seawatch/internal/logger"
)

// DefaultPageSize is the number of vessels requested per page.
const DefaultPageSize = 100

const vesselsQuery = `query Vessels($mmsi: [MMSI!], $first: Int, $after: String) {
  vessels(mmsi: $mmsi, first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      staticData {
        name
        imo
        mmsi
        dimensions {
          width
          length
        }
      }
      lastPositionUpdate {
        timestamp
        latitude
        longitude
        speed
        course
        heading
        rot
        navigationalStatus
        accuracy
        collectionType
      }
      currentVoyage {
        destination
        draught
        eta
      }
    }
  }
}`

// Client queries the Spire vessels API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	pageSize   int
	log        *logger.Logger
}

// NewClient creates a Spire client.
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  baseURL,
		pageSize: DefaultPageSize,
		log:      log.WithComponent("spire_client"),
	}
}

// FetchVessels returns the raw vessel node of every requested MMSI Spire
// knows of, following pagination until the last page. Paging also stops
// when the server hands back a cursor it already returned.
func (c *Client) FetchVessels(ctx context.Context, mmsis []int64) ([]json.RawMessage, error) {
	if len(mmsis) == 0 {
		return []json.RawMessage{}, nil
	}

	var (
		nodes []json.RawMessage
		after *string
	)
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		conn, err := c.fetchPage(ctx, mmsis, after)
		if err != nil {
			return nil, fmt.Errorf("spire page %d: %w", page, err)
		}
		nodes = append(nodes, conn.Nodes...)

		if !conn.PageInfo.HasNextPage || conn.PageInfo.EndCursor == nil {
			break
		}

		cursor := *conn.PageInfo.EndCursor
		if _, ok := seen[cursor]; ok {
			c.log.Warn("Spire cursor did not advance, stopping pagination", map[string]interface{}{
				"page":   page,
				"cursor": cursor,
			})
			break
		}
		seen[cursor] = struct{}{}
		after = conn.PageInfo.EndCursor
	}

	c.log.Debug("Fetched spire vessels", map[string]interface{}{
		"requested": len(mmsis),
		"received":  len(nodes),
	})

	if nodes == nil {
		nodes = []json.RawMessage{}
	}
	return nodes, nil
}

func (c *Client) fetchPage(ctx context.Context, mmsis []int64, after *string) (vesselConnection, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: vesselsQuery,
		Variables: map[string]any{
			"mmsi":  mmsis,
			"first": c.pageSize,
			"after": after,
		},
	})
	if err != nil {
		return vesselConnection{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return vesselConnection{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vesselConnection{}, fmt.Errorf("vessels request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return vesselConnection{}, fmt.Errorf("spire API error: status %d: %s", resp.StatusCode, msg)
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return vesselConnection{}, fmt.Errorf("decode response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		return vesselConnection{}, fmt.Errorf("spire API error: %s", strings.Join(msgs, "; "))
	}
	if gqlResp.Data.Vessels == nil {
		return vesselConnection{}, fmt.Errorf("spire API returned no vessels field")
	}

	return *gqlResp.Data.Vessels, nil
}

// Spire GraphQL wire types.

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		Vessels *vesselConnection `json:"vessels"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type vesselConnection struct {
	PageInfo struct {
		HasNextPage bool    `json:"hasNextPage"`
		EndCursor   *string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []json.RawMessage `json:"nodes"`
}
