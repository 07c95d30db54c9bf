package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/xintai6660707/ore-refined/internal/jito"
	"github.com/xintai6660707/ore-refined/internal/ore"
	"github.com/xintai6660707/ore-refined/internal/solutil"
)

// simulateUnitLimit is the generous compute budget used only for the
// pre-flight simulation; the real limit comes from consumed units.
const simulateUnitLimit = 1_400_000

// minUnitLimit floors the compute unit limit on the submitted transaction.
const minUnitLimit = 200_000

// rpcChainReader feeds the tracker from the RPC endpoint.
type rpcChainReader struct {
	client *rpc.Client
}

func (r rpcChainReader) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := r.client.GetSlot(ctx, rpc.CommitmentProcessed)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (r rpcChainReader) CurrentRound(ctx context.Context) (RoundBounds, error) {
	data, err := solutil.FetchAccountData(ctx, r.client, ore.BoardPDA())
	if err != nil {
		return RoundBounds{}, err
	}
	board, err := ore.DecodeBoard(data)
	if err != nil {
		return RoundBounds{}, err
	}
	return RoundBounds{
		RoundID:   board.RoundID,
		StartSlot: board.StartSlot,
		EndSlot:   board.EndSlot,
	}, nil
}

// chainSnapshotSource reads the live round account each tick.
type chainSnapshotSource struct {
	client   *rpc.Client
	prices   func() (oreUSD, solUSD float64, ok bool)
	emission uint64
}

func (s chainSnapshotSource) FetchSnapshot(ctx context.Context, roundID uint64) (Snapshot, error) {
	oreUSD, solUSD, ok := s.prices()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: prices not loaded", ErrUnavailable)
	}

	data, err := solutil.FetchAccountData(ctx, s.client, ore.RoundPDA(roundID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	round, err := ore.DecodeRound(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if round.ID != roundID {
		return Snapshot{}, fmt.Errorf("%w: round rolled over (have %d, want %d)", ErrUnavailable, round.ID, roundID)
	}

	squares := make([]Square, 0, len(round.Deployed))
	for i, committed := range round.Deployed {
		squares = append(squares, Square{ID: uint8(i), Committed: committed})
	}
	return Snapshot{
		RoundID:           roundID,
		Squares:           squares,
		OreUSD:            oreUSD,
		SolUSD:            solUSD,
		EmissionPerSquare: s.emission,
	}, nil
}

// ChainSubmitter performs one deployment attempt: simulate, send via RPC
// with preflight skipped, and race a Jito bundle carrying a tip alongside.
type ChainSubmitter struct {
	Client  *rpc.Client
	Bundles *jito.Client
	Signer  solana.PrivateKey
	Program solana.PublicKey

	DryRun      bool
	DisableJito bool
	UnitPrice   uint64

	Prices func() (oreUSD, solUSD float64, ok bool)
	Tip    func() uint64

	reqID atomic.Uint32
}

func (s *ChainSubmitter) SubmitOnce(ctx context.Context, sub Submission) (string, error) {
	oreUSD, solUSD, ok := s.Prices()
	if !ok {
		return "", fmt.Errorf("prices not loaded")
	}

	slots := sub.SlotsLeft
	if slots > 255 {
		slots = 255
	}
	params := ore.RefinedParams{
		OrePrice:       oreUSD,
		SolPrice:       solUSD,
		Amount:         sub.Amount,
		RemainingSlots: uint8(slots),
		RefineRate:     sub.Rate,
		Squares:        sub.Squares,
		ReqID:          uint8(s.reqID.Add(1) % 100),
	}
	signer := s.Signer.PublicKey()
	ixs := []solana.Instruction{
		ore.Checkpoint(signer, signer, sub.RoundID),
		ore.Refined(s.Program, signer, sub.RoundID, params),
		ore.ClaimSol(signer),
	}

	if s.DryRun {
		log.Printf("[dry] would deploy round=%d amount=%s squares=%v rate=%.4f slots_left=%d",
			sub.RoundID, solutil.FormatSol(sub.Amount), sub.Squares, sub.Rate, sub.SlotsLeft)
		return "", nil
	}

	simTx, err := solutil.BuildTransaction(ctx, s.Client, s.Signer, ixs, simulateUnitLimit, s.UnitPrice)
	if err != nil {
		return "", err
	}
	units, simErr, err := solutil.Simulate(ctx, s.Client, simTx)
	if err != nil {
		return "", err
	}
	if simErr != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, simErr)
	}
	limit := units * 11 / 10
	if limit < minUnitLimit {
		limit = minUnitLimit
	}

	tx, err := solutil.BuildTransaction(ctx, s.Client, s.Signer, ixs, uint32(limit), s.UnitPrice)
	if err != nil {
		return "", err
	}

	if !s.DisableJito && s.Bundles != nil {
		go s.sendBundle(ctx, ixs, uint32(limit), sub.RoundID)
	}

	sig, err := solutil.Send(ctx, s.Client, tx)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (s *ChainSubmitter) sendBundle(ctx context.Context, ixs []solana.Instruction, unitLimit uint32, roundID uint64) {
	tip := uint64(0)
	if s.Tip != nil {
		tip = s.Tip()
	}
	if tip == 0 {
		return
	}

	withBribe := make([]solana.Instruction, 0, len(ixs)+1)
	withBribe = append(withBribe, ixs...)
	withBribe = append(withBribe, jito.BribeInstruction(s.Signer.PublicKey(), tip))

	tx, err := solutil.BuildTransaction(ctx, s.Client, s.Signer, withBribe, unitLimit, s.UnitPrice)
	if err != nil {
		log.Printf("[warn] jito bundle build round=%d: %v", roundID, err)
		return
	}
	bundleID, err := s.Bundles.SendBundle(ctx, []*solana.Transaction{tx})
	if err != nil {
		if errors.Is(err, jito.ErrAlreadyProcessed) {
			log.Printf("[jito] round=%d bundle already processed", roundID)
			return
		}
		if ctx.Err() == nil {
			log.Printf("[warn] jito bundle round=%d: %v", roundID, err)
		}
		return
	}
	log.Printf("[jito] round=%d bundle=%s tip=%d", roundID, bundleID, tip)
}
