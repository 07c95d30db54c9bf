package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/xintai6660707/ore-refined/internal/boardapi"
	"github.com/xintai6660707/ore-refined/internal/dotenv"
	"github.com/xintai6660707/ore-refined/internal/solutil"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var limitFlag int
	flag.IntVar(&limitFlag, "limit", 0, "Print at most this many rounds (0 = all)")
	flag.Parse()

	client, err := boardapi.NewClient(os.Getenv("BOARD_API_URL"))
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rounds, err := client.History(ctx)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if limitFlag > 0 && limitFlag < len(rounds) {
		rounds = rounds[len(rounds)-limitFlag:]
	}

	for _, r := range rounds {
		fmt.Printf("round %d: winning_square=%d top_miner=%s winners=%d deployed=%s winnings=%s minted=%s\n",
			r.RoundID,
			r.WinningSquare,
			r.TopMiner,
			r.NumWinners,
			solutil.FormatSol(r.TotalDeployed),
			solutil.FormatSol(r.TotalWinnings),
			solutil.FormatOre(r.TotalMinted),
		)
	}
}
