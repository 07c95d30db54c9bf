package ore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/gagliardetto/solana-go"
)

// Board program opcodes (single-byte, steel style).
const (
	opCheckpoint byte = 6
	opClaimSol   byte = 4
)

// Checkpoint builds the instruction that rolls a miner's rewards forward
// to its last settled round. Safe to include even when already current.
func Checkpoint(signer, authority solana.PublicKey, roundID uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = opCheckpoint
	binary.LittleEndian.PutUint64(data[1:], roundID)

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(authority, false, false),
		solana.NewAccountMeta(MinerPDA(authority), true, false),
		solana.NewAccountMeta(BoardPDA(), false, false),
		solana.NewAccountMeta(RoundPDA(roundID), true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data)
}

// ClaimSol builds the instruction that pays out a miner's unclaimed SOL.
func ClaimSol(signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(MinerPDA(signer), true, false),
		solana.NewAccountMeta(TreasuryPDA(), true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, []byte{opClaimSol})
}

// RefinedParams are the arguments of the por program's refined entrypoint.
type RefinedParams struct {
	OrePrice       float64
	SolPrice       float64
	Amount         uint64
	RemainingSlots uint8
	RefineRate     float64
	Squares        []uint8
	ReqID          uint8
}

// Refined builds the deploy instruction against the proof-of-resource
// program: commit Amount lamports into the given squares before the round
// closes, accepting at most RefineRate ore per unclaimed ore.
func Refined(program, signer solana.PublicKey, roundID uint64, p RefinedParams) solana.Instruction {
	var buf bytes.Buffer
	buf.Write(anchorDiscriminator("refined"))
	writeU64(&buf, math.Float64bits(p.OrePrice))
	writeU64(&buf, math.Float64bits(p.SolPrice))
	writeU64(&buf, p.Amount)
	buf.WriteByte(p.RemainingSlots)
	writeU64(&buf, math.Float64bits(p.RefineRate))
	writeU32(&buf, uint32(len(p.Squares)))
	buf.Write(p.Squares)
	buf.WriteByte(p.ReqID)

	return solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(signer, true, true),
		solana.NewAccountMeta(signer, false, false),
		solana.NewAccountMeta(AutomationPDA(signer), true, false),
		solana.NewAccountMeta(BoardPDA(), false, false),
		solana.NewAccountMeta(MinerPDA(signer), true, false),
		solana.NewAccountMeta(RoundPDA(roundID), true, false),
		solana.NewAccountMeta(TreasuryPDA(), true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(ProgramID, false, false),
		solana.NewAccountMeta(FeeAddress, true, false),
	}, buf.Bytes())
}

// anchorDiscriminator is the 8-byte anchor method discriminator:
// sha256("global:<name>")[..8].
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], v)
	buf.Write(le[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], v)
	buf.Write(le[:])
}
