package ore

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

func mustPDA(seeds ...[]byte) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress(seeds, ProgramID)
	if err != nil {
		panic(err)
	}
	return addr
}

// BoardPDA is the global board account address.
func BoardPDA() solana.PublicKey {
	return mustPDA([]byte("board"))
}

// RoundPDA is the round account address for a round id.
func RoundPDA(id uint64) solana.PublicKey {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], id)
	return mustPDA([]byte("round"), le[:])
}

// MinerPDA is the miner account address for an authority.
func MinerPDA(authority solana.PublicKey) solana.PublicKey {
	return mustPDA([]byte("miner"), authority.Bytes())
}

// TreasuryPDA is the global treasury account address.
func TreasuryPDA() solana.PublicKey {
	return mustPDA([]byte("treasury"))
}

// AutomationPDA is the automation account address for an authority.
func AutomationPDA(authority solana.PublicKey) solana.PublicKey {
	return mustPDA([]byte("automation"), authority.Bytes())
}

// ConfigPDA is the global config account address.
func ConfigPDA() solana.PublicKey {
	return mustPDA([]byte("config"))
}
