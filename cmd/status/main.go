package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/xintai6660707/ore-refined/internal/bot"
	"github.com/xintai6660707/ore-refined/internal/dotenv"
	"github.com/xintai6660707/ore-refined/internal/ore"
	"github.com/xintai6660707/ore-refined/internal/price"
	"github.com/xintai6660707/ore-refined/internal/solutil"
)

// clampTop bounds the --top flag to [0, n].
func clampTop(top, n int) int {
	if top < 0 {
		return 0
	}
	if top > n {
		return n
	}
	return top
}

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var topFlag int
	var maxRateFlag float64
	flag.IntVar(&topFlag, "top", 10, "How many cheapest squares to list")
	flag.Float64Var(&maxRateFlag, "max-rate", 0, "Saturation bound; 0 lists every square")
	flag.Parse()

	rpcURL, err := solutil.RPCURLFromEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	client := rpc.New(rpcURL)

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	boardData, err := solutil.FetchAccountData(ctx, client, ore.BoardPDA())
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	board, err := ore.DecodeBoard(boardData)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	clock, err := solutil.FetchClock(ctx, client)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	slotsLeft := uint64(0)
	if clock.Slot < board.EndSlot {
		slotsLeft = board.EndSlot - clock.Slot
	}

	fmt.Printf("round: %d\n", board.RoundID)
	fmt.Printf("slot: %d (round %d..%d)\n", clock.Slot, board.StartSlot, board.EndSlot)
	fmt.Printf("slots_left: %d\n", slotsLeft)

	roundData, err := solutil.FetchAccountData(ctx, client, ore.RoundPDA(board.RoundID))
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	round, err := ore.DecodeRound(roundData)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	fmt.Printf("total_deployed: %s SOL\n", solutil.FormatSol(round.TotalDeployed))

	priceClient, err := price.NewClient("")
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	oreUSD, solUSD, err := priceClient.Prices(ctx)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	fmt.Printf("prices: ore=%.2f sol=%.2f\n", oreUSD, solUSD)

	snap := bot.Snapshot{
		RoundID:           board.RoundID,
		OreUSD:            oreUSD,
		SolUSD:            solUSD,
		EmissionPerSquare: ore.OneOre,
	}
	for i, committed := range round.Deployed {
		snap.Squares = append(snap.Squares, bot.Square{ID: uint8(i), Committed: committed})
	}
	cands := bot.BuildCandidates(snap, 0, maxRateFlag)

	top := clampTop(topFlag, len(cands))
	fmt.Printf("squares (cheapest %d of %d eligible):\n", top, len(cands))
	for _, c := range cands[:top] {
		fmt.Printf("  #%02d committed=%s rate=%.4f\n", c.ID, solutil.FormatSol(c.Committed), c.Rate)
	}
}
