package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/xintai6660707/ore-refined/internal/dotenv"
	"github.com/xintai6660707/ore-refined/internal/ore"
	"github.com/xintai6660707/ore-refined/internal/solutil"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var addrFlag string
	flag.StringVar(&addrFlag, "address", "", "Wallet address to check (default: signer from KEYPAIR_PATH)")
	flag.Parse()

	rpcURL, err := solutil.RPCURLFromEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	owner, ownerSrc, err := resolveOwner(addrFlag)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	client := rpc.New(rpcURL)

	lamports, err := solutil.SolBalance(ctx, client, owner)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(owner, ore.MintAddress)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	walletOre, err := solutil.TokenBalance(ctx, client, ata)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	fmt.Printf("owner: %s (%s)\n", owner, ownerSrc)
	fmt.Printf("sol_balance: %s (lamports=%d)\n", solutil.FormatSol(lamports), lamports)
	fmt.Printf("ore_balance: %s (atomic=%d)\n", solutil.FormatOre(walletOre), walletOre)

	minerData, err := solutil.FetchAccountData(ctx, client, ore.MinerPDA(owner))
	if err != nil {
		fmt.Printf("miner: (no account: deploy at least once to create it)\n")
		return
	}
	miner, err := ore.DecodeMiner(minerData)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	unclaimedOre := miner.RewardsOre
	treasuryData, err := solutil.FetchAccountData(ctx, client, ore.TreasuryPDA())
	if err == nil {
		if treasury, terr := ore.DecodeTreasury(treasuryData); terr == nil {
			// Rewards accrue between checkpoints; fold in the factor
			// delta so the figure matches what a claim would pay now.
			delta := treasury.MinerRewardsFactor.Sub(miner.RewardsFactor)
			if !delta.IsNegative() {
				unclaimedOre += delta.MulU64ToU64(miner.RefinedOre)
			}
		}
	}

	fmt.Printf("miner_round: %d\n", miner.RoundID)
	fmt.Printf("unclaimed_sol: %s (lamports=%d)\n", solutil.FormatSol(miner.RewardsSol), miner.RewardsSol)
	fmt.Printf("unclaimed_ore: %s (atomic=%d)\n", solutil.FormatOre(unclaimedOre), unclaimedOre)
	fmt.Printf("refined_ore: %s (atomic=%d)\n", solutil.FormatOre(miner.RefinedOre), miner.RefinedOre)
}

func resolveOwner(addrFlag string) (solana.PublicKey, string, error) {
	if raw := strings.TrimSpace(addrFlag); raw != "" {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return solana.PublicKey{}, "", fmt.Errorf("invalid --address %q: %w", raw, err)
		}
		return pk, "--address", nil
	}
	if raw := strings.TrimSpace(os.Getenv("ORE_WALLET")); raw != "" {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return solana.PublicKey{}, "", fmt.Errorf("invalid ORE_WALLET %q: %w", raw, err)
		}
		return pk, "ORE_WALLET", nil
	}
	key, err := solutil.LoadKeypair()
	if err != nil {
		return solana.PublicKey{}, "", fmt.Errorf("wallet required: set KEYPAIR_PATH, ORE_WALLET, or pass --address (%w)", err)
	}
	return key.PublicKey(), "KEYPAIR_PATH", nil
}
