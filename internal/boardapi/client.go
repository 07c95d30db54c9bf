// Package boardapi queries the off-chain board indexer for settled rounds.
package boardapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

const DefaultURL = "https://ore-bsm.onrender.com"

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

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("board api url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("board api url must be http(s), got %q", host)
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}, nil
}

// RoundSummary is one settled round as reported by the indexer.
type RoundSummary struct {
	RoundID       uint64
	StartSlot     uint64
	EndSlot       uint64
	WinningSquare uint8
	TopMiner      solana.PublicKey
	NumWinners    uint32
	TotalDeployed uint64
	TotalVaulted  uint64
	TotalWinnings uint64
	TotalMinted   uint64
	Ts            uint64
}

type historyInfo struct {
	Disc          uint8  `json:"disc"`
	RoundID       uint64 `json:"round_id"`
	StartSlot     uint64 `json:"start_slot"`
	EndSlot       uint64 `json:"end_slot"`
	WinningSquare uint8  `json:"winning_square"`
	// Serialized as a JSON array of byte values, not base64.
	TopMiner      []uint16 `json:"top_miner"`
	NumWinners    uint32   `json:"num_winners"`
	TotalDeployed uint64   `json:"total_deployed"`
	TotalVaulted  uint64   `json:"total_vaulted"`
	TotalWinnings uint64   `json:"total_winnings"`
	TotalMinted   uint64   `json:"total_minted"`
	Ts            uint64   `json:"ts"`
}

// History returns the settled rounds, newest semantics left to the server.
// Each history entry is a two-element array: [account key bytes, round info].
func (c *Client) History(ctx context.Context) ([]RoundSummary, error) {
	endpoint := c.host + "/board/history"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("board history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("board history %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("board history decode: %w", err)
	}

	out := make([]RoundSummary, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("board history row %d: want [key, info], got %d elements", i, len(row))
		}
		var info historyInfo
		if err := json.Unmarshal(row[1], &info); err != nil {
			return nil, fmt.Errorf("board history row %d: %w", i, err)
		}
		s := RoundSummary{
			RoundID:       info.RoundID,
			StartSlot:     info.StartSlot,
			EndSlot:       info.EndSlot,
			WinningSquare: info.WinningSquare,
			NumWinners:    info.NumWinners,
			TotalDeployed: info.TotalDeployed,
			TotalVaulted:  info.TotalVaulted,
			TotalWinnings: info.TotalWinnings,
			TotalMinted:   info.TotalMinted,
			Ts:            info.Ts,
		}
		if len(info.TopMiner) == solana.PublicKeyLength {
			raw := make([]byte, len(info.TopMiner))
			for j, b := range info.TopMiner {
				raw[j] = byte(b)
			}
			s.TopMiner = solana.PublicKeyFromBytes(raw)
		}
		out = append(out, s)
	}
	return out, nil
}
