package boardapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestHistory(t *testing.T) {
	miner := solana.MustPublicKeyFromBase58("oreoU2P8bN6jkk3jbaiVxYnG1dCXcYxwhwyK9jSybcp")
	minerBytes := make([]int, solana.PublicKeyLength)
	for i, b := range miner.Bytes() {
		minerBytes[i] = int(b)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/board/history" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		row := []any{
			minerBytes,
			map[string]any{
				"disc":           102,
				"round_id":       41,
				"start_slot":     1000,
				"end_slot":       1150,
				"winning_square": 7,
				"top_miner":      minerBytes,
				"num_winners":    3,
				"total_deployed": 5_000_000_000,
				"total_vaulted":  1_000_000_000,
				"total_winnings": 4_000_000_000,
				"total_minted":   100_000_000_000,
				"ts":             1724457600,
			},
		}
		json.NewEncoder(w).Encode([]any{row})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	rounds, err := c.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("len=%d want 1", len(rounds))
	}
	r := rounds[0]
	if r.RoundID != 41 || r.WinningSquare != 7 || r.NumWinners != 3 {
		t.Fatalf("round mismatch: %+v", r)
	}
	if !r.TopMiner.Equals(miner) {
		t.Fatalf("top miner: got=%s want=%s", r.TopMiner, miner)
	}
	if r.TotalDeployed != 5_000_000_000 {
		t.Fatalf("total deployed=%d", r.TotalDeployed)
	}
}

func TestHistory_BadRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[[1,2,3]]]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.History(context.Background()); err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestNewClient_RejectsBadScheme(t *testing.T) {
	if _, err := NewClient("ws://example.com"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
