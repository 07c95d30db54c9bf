// Package price fetches ORE and SOL USD prices from the Jupiter lite API.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultURL = "https://lite-api.jup.ag"

const (
	solMint = "So11111111111111111111111111111111111111112"
	oreMint = "oreoU2P8bN6jkk3jbaiVxYnG1dCXcYxwhwyK9jSybcp"
)

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return nil, fmt.Errorf("price api url must be http(s), got %q", host)
	}
	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type priceInfo struct {
	USDPrice       float64 `json:"usdPrice"`
	BlockID        int64   `json:"blockId"`
	Decimals       int64   `json:"decimals"`
	PriceChange24h float64 `json:"priceChange24h"`
}

// Prices returns the ORE and SOL USD prices.
func (c *Client) Prices(ctx context.Context) (oreUSD, solUSD float64, err error) {
	endpoint := c.host + "/price/v3?ids=" + solMint + "," + oreMint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return 0, 0, fmt.Errorf("price api %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}

	var out map[string]priceInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, fmt.Errorf("price api decode: %w", err)
	}

	ore, okOre := out[oreMint]
	sol, okSol := out[solMint]
	if !okOre || !okSol || ore.USDPrice <= 0 || sol.USDPrice <= 0 {
		return 0, 0, fmt.Errorf("price api: missing ORE/SOL prices in response")
	}
	return ore.USDPrice, sol.USDPrice, nil
}
