package bot

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/xintai6660707/ore-refined/internal/dotenv"
	"github.com/xintai6660707/ore-refined/internal/jito"
	"github.com/xintai6660707/ore-refined/internal/jsonl"
	"github.com/xintai6660707/ore-refined/internal/ore"
	"github.com/xintai6660707/ore-refined/internal/price"
	"github.com/xintai6660707/ore-refined/internal/solutil"
	"github.com/xintai6660707/ore-refined/internal/state"
)

type priceCache struct {
	mu     sync.Mutex
	oreUSD float64
	solUSD float64
	loaded bool
}

func (p *priceCache) set(oreUSD, solUSD float64) {
	p.mu.Lock()
	p.oreUSD, p.solUSD, p.loaded = oreUSD, solUSD, true
	p.mu.Unlock()
}

func (p *priceCache) get() (oreUSD, solUSD float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oreUSD, p.solUSD, p.loaded
}

// Run is the deploy bot entrypoint: parse config, wire the chain feeds,
// and drive the scheduler until interrupted.
func Run(argv []string) {
	if err := dotenv.Load(); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	cfg, err := ParseConfig(argv)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	policy, err := NewPolicy(cfg)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	rpcURL, err := solutil.RPCURLFromEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	signer, err := solutil.LoadKeypair()
	if err != nil {
		if cfg.EnableDeploy {
			log.Fatalf("[fatal] %v", err)
		}
		signer = solana.NewWallet().PrivateKey
		log.Printf("[info] no keypair available; using ephemeral key for dry-run")
	}

	program := ore.ProgramID
	if raw := strings.TrimSpace(os.Getenv("ORE_PROGRAM_ID")); raw != "" {
		program, err = solana.PublicKeyFromBase58(raw)
		if err != nil {
			log.Fatalf("[fatal] invalid ORE_PROGRAM_ID %q: %v", raw, err)
		}
	}

	priceClient, err := price.NewClient(cfg.PriceURL)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ckpt, haveCkpt, err := state.LoadCheckpoint(cfg.CheckpointFile)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	var skipRound uint64
	if haveCkpt {
		skipRound = ckpt.RoundID
		log.Printf("[cfg] checkpoint: round=%d outcome=%s (will not re-enter)", ckpt.RoundID, ckpt.Outcome)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runStartedAt := time.Now()
	eventLog := jsonl.New(cfg.OutFile)
	if eventLog != nil {
		log.Printf("Event log: %s (JSONL)", cfg.OutFile)
		defer func() {
			if err := eventLog.Close(); err != nil {
				log.Printf("[warn] event log close: %v", err)
			}
		}()
		logDeployEvent(eventLog, deployLogEvent{
			TsMs:           time.Now().UnixMilli(),
			Event:          "start",
			Mode:           deployMode(cfg.EnableDeploy),
			AmountLamports: cfg.AmountLamports,
		})
	}

	log.Printf("ORE deploy bot (policy=%s)", cfg.PolicyKind)
	log.Printf("Wallet: %s", signer.PublicKey())
	log.Printf("Amount: %s SOL across %d squares (min %d eligible)",
		solutil.FormatSol(cfg.AmountLamports), cfg.PickSquares, cfg.MinSquares)
	log.Printf("Window: last %d slots, tick %s", cfg.Window, cfg.Tick)
	if cfg.PolicyKind == "threshold" {
		log.Printf("Refine rate: <= %.2f (saturation %.2f)", cfg.Threshold, cfg.MaxRate)
	} else {
		log.Printf("Refine rate: self-calibrating (floor %.2f, saturation %.2f)", minRefineRate, cfg.MaxRate)
	}
	log.Printf("Jito: %v (tip >= %d lamports)", !cfg.DisableJito, cfg.TipMin)
	log.Printf("Dry-run: %v", !cfg.EnableDeploy)

	client := rpc.New(rpcURL)
	chainStatus := newStatusTracker("[chain]", 10*time.Second)
	tracker := NewTracker(rpcChainReader{client: client}, TrackerOptions{
		StaleAfter: cfg.StaleAfter,
		OnError: func(err error) {
			chainStatus.Set("refresh", err.Error())
		},
	})
	tracker.Start(ctx)

	prices := &priceCache{}
	go refreshPrices(ctx, priceClient, tracker, prices)

	tipLamports := new(atomic.Uint64)
	tipLamports.Store(cfg.TipMin)
	if !cfg.DisableJito {
		go consumeTips(ctx, cfg, tipLamports)
	}

	submitter := &ChainSubmitter{
		Client:      client,
		Bundles:     jito.NewClient(nil),
		Signer:      signer,
		Program:     program,
		DryRun:      !cfg.EnableDeploy,
		DisableJito: cfg.DisableJito,
		UnitPrice:   cfg.UnitPrice,
		Prices:      prices.get,
		Tip:         tipLamports.Load,
	}
	retry := &RetrySubmitter{
		Transport:   submitter,
		RetryDelay:  cfg.RetryDelay,
		MaxAttempts: cfg.MaxAttempts,
	}

	decideStatus := newStatusTracker("[deploy]", 5*time.Second)
	var sched *Scheduler
	hooks := Hooks{
		OnWatching: func(pos SlotPosition) {
			log.Printf("[round] %d watching (slots_left=%d)", pos.RoundID, pos.SlotsLeft())
		},
		OnDeciding: func(pos SlotPosition) {
			log.Printf("[round] %d window open (slots_left=%d)", pos.RoundID, pos.SlotsLeft())
		},
		OnDecision: func(roundID uint64, d Decision, slotsLeft uint64) {
			if !d.Commit {
				decideStatus.Set("skip", d.Reason)
				return
			}
			log.Printf("[deploy] round=%d amount=%s squares=%v rate=%.4f slots_left=%d",
				roundID, solutil.FormatSol(d.Amount), d.Squares, d.Rate, slotsLeft)
			logDeployEvent(eventLog, deployLogEvent{
				TsMs:           time.Now().UnixMilli(),
				Event:          "commit",
				Mode:           deployMode(cfg.EnableDeploy),
				RoundID:        roundID,
				SlotsLeft:      slotsLeft,
				Commit:         true,
				AmountLamports: d.Amount,
				Squares:        d.Squares,
				Rate:           d.Rate,
				UptimeMs:       time.Since(runStartedAt).Milliseconds(),
			})
		},
		OnFetchErr: func(roundID uint64, err error) {
			decideStatus.Set("fetch", err.Error())
		},
		OnOutcome: func(roundID uint64, out Outcome, sig string, err error) {
			if err != nil && out != OutcomeLanded {
				log.Printf("[round] %d settled outcome=%s err=%v", roundID, out, err)
			} else if sig != "" {
				log.Printf("[round] %d settled outcome=%s sig=%s", roundID, out, sig)
			} else {
				log.Printf("[round] %d settled outcome=%s", roundID, out)
			}
			ev := deployLogEvent{
				TsMs:     time.Now().UnixMilli(),
				Event:    "settled",
				Mode:     deployMode(cfg.EnableDeploy),
				RoundID:  roundID,
				Outcome:  out.String(),
				UptimeMs: time.Since(runStartedAt).Milliseconds(),
			}
			if sig != "" {
				ev.Signature = sig
			}
			if err != nil {
				ev.Err = err.Error()
			}
			logDeployEvent(eventLog, ev)

			// Skipped rounds are safe to re-enter after a restart; only
			// acted-on rounds are checkpointed.
			if out == OutcomeSkipped {
				return
			}
			if cerr := state.SaveCheckpoint(cfg.CheckpointFile, state.Checkpoint{
				RoundID:   roundID,
				Outcome:   out.String(),
				Signature: sig,
				UpdatedAt: time.Now().UTC(),
			}); cerr != nil {
				log.Printf("[warn] checkpoint save: %v", cerr)
			}
		},
	}
	sched = NewScheduler(chainSnapshotSource{
		client:   client,
		prices:   prices.get,
		emission: cfg.EmissionPerSquare,
	}, policy, retry, SchedulerConfig{
		Window:      cfg.Window,
		Amount:      cfg.AmountLamports,
		MinSquares:  cfg.MinSquares,
		PickSquares: cfg.PickSquares,
		MaxRate:     cfg.MaxRate,
		SkipRound:   skipRound,
	}, hooks)
	retry.SlotsLeft = sched.SlotsLeft

	log.Printf("Listening…")
	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("Shutting down…")
			logDeployEvent(eventLog, deployLogEvent{
				TsMs:     time.Now().UnixMilli(),
				Event:    "summary",
				Mode:     deployMode(cfg.EnableDeploy),
				UptimeMs: time.Since(runStartedAt).Milliseconds(),
			})
			return
		case <-ticker.C:
			pos, ok := tracker.Poll()
			if !ok {
				continue
			}
			sched.Tick(ctx, pos)
		}
	}
}

// refreshPrices fetches ORE/SOL quotes when a new round appears (prices
// parameterize the per-round refine rate) and keeps a slow heartbeat so a
// long round does not run on old quotes.
func refreshPrices(ctx context.Context, client *price.Client, tracker *Tracker, cache *priceCache) {
	var lastRound uint64
	var lastFetch time.Time

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pos, ok := tracker.Poll()
		if !ok {
			continue
		}
		_, _, loaded := cache.get()
		if loaded && pos.RoundID == lastRound && time.Since(lastFetch) < time.Minute {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		oreUSD, solUSD, err := client.Prices(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[warn] price refresh: %v", err)
			}
			continue
		}
		cache.set(oreUSD, solUSD)
		if pos.RoundID != lastRound {
			log.Printf("[price] round=%d ore=%.2f sol=%.2f", pos.RoundID, oreUSD, solUSD)
		}
		lastRound = pos.RoundID
		lastFetch = time.Now()
	}
}

// consumeTips follows the Jito tip stream and keeps the bribe amount at
// the median landed tip, floored at the configured minimum.
func consumeTips(ctx context.Context, cfg Config, tipLamports *atomic.Uint64) {
	tips, errs := jito.StreamTips(ctx, cfg.TipStreamURL, jito.StreamOptions{})
	tipStatus := newStatusTracker("[jito]", 30*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tips:
			if !ok {
				return
			}
			tip := t.P50Lamports()
			if tip < cfg.TipMin {
				tip = cfg.TipMin
			}
			tipLamports.Store(tip)
		case err, ok := <-errs:
			if !ok {
				return
			}
			tipStatus.Set("stream", err.Error())
		}
	}
}
