// Package ore holds the on-chain layouts, PDAs, and instruction builders
// for the ORE board program and its proof-of-resource (refined) companion.
package ore

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the ORE v3 board program.
	ProgramID = solana.MustPublicKeyFromBase58("oreV3EG1i9BEgiAJ8b177Z2S2rMarzak4NMv1kULvWv")

	// MintAddress is the ORE token mint.
	MintAddress = solana.MustPublicKeyFromBase58("oreoU2P8bN6jkk3jbaiVxYnG1dCXcYxwhwyK9jSybcp")

	// FeeAddress collects the protocol fee on deploys.
	FeeAddress = solana.MustPublicKeyFromBase58("Feei2iwqp9Adcyte1F5XnKzGTFL1VDg4VyiypvoeiJyJ")
)

const (
	// TokenDecimals is the decimal count of the ORE mint.
	TokenDecimals = 11

	// OneOre is one whole ORE in atomic units.
	OneOre = uint64(100_000_000_000)

	// BoardSquares is the number of squares on the round board (5x5 grid).
	BoardSquares = 25

	// LamportsPerSol mirrors solana.LAMPORTS_PER_SOL for callers that do
	// not otherwise import the SDK.
	LamportsPerSol = uint64(1_000_000_000)
)

// Account discriminators (first 8 bytes, little-endian u64).
const (
	discAutomation uint64 = 100
	discBoard      uint64 = 101
	discConfig     uint64 = 102
	discMiner      uint64 = 103
	discRound      uint64 = 104
	discTreasury   uint64 = 105
)

// Board is the global board account: which round is live and its slot span.
type Board struct {
	RoundID   uint64
	StartSlot uint64
	EndSlot   uint64
}

// Round carries the per-square deployed lamports for one round. Other
// participants mutate it continuously while the round is open.
type Round struct {
	ID            uint64
	Deployed      [BoardSquares]uint64
	TotalDeployed uint64
	TotalVaulted  uint64
	TotalMinted   uint64
	Ts            int64
}

// Miner is the per-authority mining account.
type Miner struct {
	Authority     solana.PublicKey
	RoundID       uint64
	RewardsSol    uint64
	RewardsOre    uint64
	RefinedOre    uint64
	RewardsFactor Numeric
}

// Treasury is the global treasury account.
type Treasury struct {
	Balance            uint64
	Motherlode         uint64
	MinerRewardsFactor Numeric
	StakeRewardsFactor Numeric
	TotalStaked        uint64
	TotalUnclaimed     uint64
	TotalRefined       uint64
}

func decodeAccount(data []byte, wantDisc uint64, v interface{}) error {
	if len(data) < 8 {
		return fmt.Errorf("account data too short: %d bytes", len(data))
	}
	disc := binary.LittleEndian.Uint64(data[:8])
	if disc != wantDisc {
		return fmt.Errorf("unexpected discriminator %d (want %d)", disc, wantDisc)
	}
	dec := bin.NewBinDecoder(data[8:])
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}
	return nil
}

// DecodeBoard parses a board account.
func DecodeBoard(data []byte) (Board, error) {
	var b Board
	if err := decodeAccount(data, discBoard, &b); err != nil {
		return Board{}, fmt.Errorf("board: %w", err)
	}
	return b, nil
}

// DecodeRound parses a round account.
func DecodeRound(data []byte) (Round, error) {
	var r Round
	if err := decodeAccount(data, discRound, &r); err != nil {
		return Round{}, fmt.Errorf("round: %w", err)
	}
	return r, nil
}

// DecodeMiner parses a miner account.
func DecodeMiner(data []byte) (Miner, error) {
	var m Miner
	if err := decodeAccount(data, discMiner, &m); err != nil {
		return Miner{}, fmt.Errorf("miner: %w", err)
	}
	return m, nil
}

// DecodeTreasury parses the treasury account.
func DecodeTreasury(data []byte) (Treasury, error) {
	var t Treasury
	if err := decodeAccount(data, discTreasury, &t); err != nil {
		return Treasury{}, fmt.Errorf("treasury: %w", err)
	}
	return t, nil
}
