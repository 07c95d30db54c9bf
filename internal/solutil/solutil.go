// Package solutil wraps the Solana RPC plumbing shared by the commands:
// env config, keypair loading, account fetches, and transaction build/send.
package solutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCURLFromEnv returns the Solana RPC endpoint from RPC_URL/ORE_RPC_URL.
func RPCURLFromEnv() (string, error) {
	raw := strings.TrimSpace(firstNonEmpty(os.Getenv("RPC_URL"), os.Getenv("ORE_RPC_URL")))
	if raw == "" {
		return "", fmt.Errorf("rpc url required: set RPC_URL (a private provider such as Helius is recommended)")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", fmt.Errorf("rpc url must be http(s), got %q", raw)
	}
	return raw, nil
}

// LoadKeypair reads the payer keypair from KEYPAIR_PATH, falling back to
// the solana-cli default location.
func LoadKeypair() (solana.PrivateKey, error) {
	path := strings.TrimSpace(os.Getenv("KEYPAIR_PATH"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("keypair required: set KEYPAIR_PATH (%w)", err)
		}
		path = filepath.Join(home, ".config", "solana", "id.json")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

// FetchAccountData returns the raw data of an account at processed
// commitment, erroring when the account does not exist.
func FetchAccountData(ctx context.Context, c *rpc.Client, addr solana.PublicKey) ([]byte, error) {
	res, err := c.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if res == nil || res.Value == nil {
		return nil, fmt.Errorf("account %s not found", addr)
	}
	data := res.Value.Data.GetBinary()
	if len(data) == 0 {
		return nil, fmt.Errorf("account %s has no data", addr)
	}
	return data, nil
}

// Clock mirrors the clock sysvar layout (bincode, little-endian).
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

// FetchClock reads and decodes the clock sysvar.
func FetchClock(ctx context.Context, c *rpc.Client) (Clock, error) {
	data, err := FetchAccountData(ctx, c, solana.SysVarClockPubkey)
	if err != nil {
		return Clock{}, err
	}
	var clock Clock
	if err := bin.NewBinDecoder(data).Decode(&clock); err != nil {
		return Clock{}, fmt.Errorf("decode clock sysvar: %w", err)
	}
	return clock, nil
}

// SolBalance returns the lamport balance of an address.
func SolBalance(ctx context.Context, c *rpc.Client, owner solana.PublicKey) (uint64, error) {
	res, err := c.GetBalance(ctx, owner, rpc.CommitmentProcessed)
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", owner, err)
	}
	return res.Value, nil
}

// TokenBalance returns the atomic balance of a token account, treating a
// missing account as zero.
func TokenBalance(ctx context.Context, c *rpc.Client, tokenAccount solana.PublicKey) (uint64, error) {
	res, err := c.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentProcessed)
	if err != nil {
		return 0, nil
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	var amount uint64
	if _, err := fmt.Sscan(res.Value.Amount, &amount); err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// BuildTransaction assembles and signs a transaction with a compute budget
// prelude: unit limit, then unit price in micro-lamports.
func BuildTransaction(
	ctx context.Context,
	c *rpc.Client,
	payer solana.PrivateKey,
	instructions []solana.Instruction,
	unitLimit uint32,
	unitPriceMicroLamports uint64,
) (*solana.Transaction, error) {
	blockhash, err := c.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("get blockhash: %w", err)
	}

	all := make([]solana.Instruction, 0, len(instructions)+2)
	all = append(all, computebudget.NewSetComputeUnitLimitInstruction(unitLimit).Build())
	all = append(all, computebudget.NewSetComputeUnitPriceInstruction(unitPriceMicroLamports).Build())
	all = append(all, instructions...)

	tx, err := solana.NewTransaction(all, blockhash.Value.Blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// Simulate runs the transaction at processed commitment and returns the
// consumed compute units. A non-nil simErr means the program itself failed;
// err covers the transport.
func Simulate(ctx context.Context, c *rpc.Client, tx *solana.Transaction) (units uint64, simErr error, err error) {
	res, err := c.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("simulate: %w", err)
	}
	if res == nil || res.Value == nil {
		return 0, nil, fmt.Errorf("simulate: empty response")
	}
	if res.Value.UnitsConsumed != nil {
		units = *res.Value.UnitsConsumed
	}
	if res.Value.Err != nil {
		return units, fmt.Errorf("program error: %v", res.Value.Err), nil
	}
	return units, nil, nil
}

// Send submits a signed transaction with preflight skipped; the caller is
// expected to have simulated already.
func Send(ctx context.Context, c *rpc.Client, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// FormatSol renders lamports as a SOL decimal string.
func FormatSol(lamports uint64) string {
	return formatAtomic(lamports, 9)
}

// FormatOre renders atomic ORE as a decimal string.
func FormatOre(atomic uint64) string {
	return formatAtomic(atomic, 11)
}

func formatAtomic(v uint64, decimals int) string {
	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	whole := v / scale
	frac := v % scale
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%0*d", decimals, frac), "0")
	return fmt.Sprintf("%d.%s", whole, fs)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
