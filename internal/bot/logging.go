package bot

import (
	"log"

	"github.com/xintai6660707/ore-refined/internal/jsonl"
)

type deployLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	Mode string `json:"mode,omitempty"` // dry | live

	RoundID   uint64 `json:"round_id,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`
	SlotsLeft uint64 `json:"slots_left,omitempty"`

	// Decision fields.
	Commit         bool    `json:"commit,omitempty"`
	AmountLamports uint64  `json:"amount_lamports,omitempty"`
	Squares        []uint8 `json:"squares,omitempty"`
	Rate           float64 `json:"rate,omitempty"`
	Reason         string  `json:"reason,omitempty"`

	// Submission fields.
	Outcome   string `json:"outcome,omitempty"`
	Signature string `json:"signature,omitempty"`

	OreUSD float64 `json:"ore_usd,omitempty"`
	SolUSD float64 `json:"sol_usd,omitempty"`

	Err string `json:"err,omitempty"`

	UptimeMs int64 `json:"uptime_ms,omitempty"`
}

func deployMode(enabled bool) string {
	if enabled {
		return "live"
	}
	return "dry"
}

func logDeployEvent(w *jsonl.Writer, ev deployLogEvent) {
	if w == nil {
		return
	}
	if err := w.Write(ev); err != nil {
		log.Printf("[warn] event log write failed: %v", err)
	}
}
