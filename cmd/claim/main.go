package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/xintai6660707/ore-refined/internal/dotenv"
	"github.com/xintai6660707/ore-refined/internal/ore"
	"github.com/xintai6660707/ore-refined/internal/solutil"
)

const claimUnitLimit = 200_000

type config struct {
	interval     time.Duration
	enableClaims bool
	minLamports  uint64
	unitPrice    uint64
}

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	rpcURL, err := solutil.RPCURLFromEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	signer, err := solutil.LoadKeypair()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	client := rpc.New(rpcURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.interval <= 0 {
		if err := runOnce(ctx, client, signer, cfg); err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		return
	}

	log.Printf("[claim] running every %s (wallet=%s)", cfg.interval, signer.PublicKey())
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		if err := runOnce(ctx, client, signer, cfg); err != nil {
			log.Printf("[warn] claim pass: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func loadConfig() (config, error) {
	var cfg config
	var intervalFlag string
	var minSolFlag string
	var enableFlag bool
	var unitPriceFlag int

	flag.StringVar(&intervalFlag, "every", "", "Claim interval (e.g. 30m). Empty = run once (default).")
	flag.StringVar(&minSolFlag, "min-sol", "0.001", "Skip the claim when unclaimed SOL is below this.")
	flag.BoolVar(&enableFlag, "enable-claims", false, "Send claim transactions (default false; set ENABLE_CLAIMS).")
	flag.IntVar(&unitPriceFlag, "unit-price", 20_000, "Compute unit price in micro-lamports.")
	flag.Parse()

	if intervalFlag != "" {
		v, err := time.ParseDuration(intervalFlag)
		if err != nil {
			return cfg, fmt.Errorf("invalid --every duration %q: %w", intervalFlag, err)
		}
		cfg.interval = v
	}

	minSol, err := strconv.ParseFloat(strings.TrimSpace(minSolFlag), 64)
	if err != nil || minSol < 0 {
		return cfg, fmt.Errorf("invalid --min-sol %q", minSolFlag)
	}
	cfg.minLamports = uint64(minSol * float64(ore.LamportsPerSol))
	cfg.unitPrice = uint64(unitPriceFlag)

	cfg.enableClaims = enableFlag
	if env := strings.TrimSpace(os.Getenv("ENABLE_CLAIMS")); env != "" && !enableFlag {
		v, err := strconv.ParseBool(env)
		if err != nil {
			return cfg, fmt.Errorf("invalid ENABLE_CLAIMS %q: %w", env, err)
		}
		cfg.enableClaims = v
	}
	return cfg, nil
}

func runOnce(ctx context.Context, client *rpc.Client, signer solana.PrivateKey, cfg config) error {
	callCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	minerData, err := solutil.FetchAccountData(callCtx, client, ore.MinerPDA(signer.PublicKey()))
	if err != nil {
		return fmt.Errorf("miner account: %w", err)
	}
	miner, err := ore.DecodeMiner(minerData)
	if err != nil {
		return err
	}

	log.Printf("[claim] unclaimed_sol=%s", solutil.FormatSol(miner.RewardsSol))
	if miner.RewardsSol < cfg.minLamports {
		log.Printf("[claim] below --min-sol threshold; nothing to do")
		return nil
	}
	if !cfg.enableClaims {
		log.Printf("[claim] dry-run: set ENABLE_CLAIMS=true (or --enable-claims) to submit transactions")
		return nil
	}

	ix := ore.ClaimSol(signer.PublicKey())
	tx, err := solutil.BuildTransaction(callCtx, client, signer, []solana.Instruction{ix}, claimUnitLimit, cfg.unitPrice)
	if err != nil {
		return err
	}
	if _, simErr, err := solutil.Simulate(callCtx, client, tx); err != nil {
		return err
	} else if simErr != nil {
		return fmt.Errorf("claim simulation: %v", simErr)
	}
	sig, err := solutil.Send(callCtx, client, tx)
	if err != nil {
		return err
	}
	log.Printf("[claim] submitted sig=%s", sig)
	return nil
}
