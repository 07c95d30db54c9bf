package jito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultTipStreamURL = "ws://bundles-api-rest.jito.wtf/api/v1/bundles/tip_stream"

// Tips is one sample from the landed-tips stream. Values are in SOL.
type Tips struct {
	Time   string  `json:"time"`
	P25    float64 `json:"landed_tips_25th_percentile"`
	P50    float64 `json:"landed_tips_50th_percentile"`
	P75    float64 `json:"landed_tips_75th_percentile"`
	P95    float64 `json:"landed_tips_95th_percentile"`
	P99    float64 `json:"landed_tips_99th_percentile"`
	EMAP50 float64 `json:"ema_landed_tips_50th_percentile"`
}

// P50Lamports converts the median landed tip to lamports.
func (t Tips) P50Lamports() uint64 {
	if t.P50 <= 0 {
		return 0
	}
	return uint64(t.P50 * 1e9)
}

// P25Lamports converts the 25th-percentile landed tip to lamports.
func (t Tips) P25Lamports() uint64 {
	if t.P25 <= 0 {
		return 0
	}
	return uint64(t.P25 * 1e9)
}

type StreamOptions struct {
	BackoffMin time.Duration
	BackoffMax time.Duration

	OutBuffer int
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 15 * time.Second
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = 16
	}
	return o
}

// StreamTips connects to the tip stream and emits decoded samples,
// reconnecting with backoff until ctx is cancelled.
func StreamTips(ctx context.Context, url string, opts StreamOptions) (<-chan Tips, <-chan error) {
	opts = opts.withDefaults()
	if url == "" {
		url = DefaultTipStreamURL
	}

	out := make(chan Tips, opts.OutBuffer)
	errs := make(chan error, 16)

	go func() {
		defer close(out)
		defer close(errs)

		backoff := opts.BackoffMin
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				emitErrNonBlocking(errs, fmt.Errorf("tip stream dial: %w", err))
				sleepWithJitter(ctx, backoff)
				backoff = nextBackoff(backoff, opts.BackoffMax)
				continue
			}

			backoff = opts.BackoffMin

			if err := readTips(ctx, conn, out, errs); err != nil && ctx.Err() == nil {
				emitErrNonBlocking(errs, err)
			}

			_ = conn.Close()
			if ctx.Err() != nil {
				return
			}
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff, opts.BackoffMax)
		}
	}()

	return out, errs
}

func readTips(ctx context.Context, conn *websocket.Conn, out chan<- Tips, errs chan<- error) error {
	// The watcher must not outlive this connection; a long-running stream
	// reconnects many times.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tip stream read: %w", err)
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(msg) == 0 {
			continue
		}

		// The stream wraps each sample in a one-element array.
		var samples []Tips
		if err := json.Unmarshal(msg, &samples); err != nil {
			emitErrNonBlocking(errs, fmt.Errorf("tip stream decode: %w", err))
			continue
		}

		for _, s := range samples {
			select {
			case out <- s:
			default:
			}
		}
	}
}

func emitErrNonBlocking(ch chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	j := int64(d) / 7
	if j > 0 {
		d = time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
