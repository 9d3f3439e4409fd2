package bridge

import "github.com/gagliardetto/solana-go"

// Seed prefixes used by the bridge program for its PDAs.
var (
	profileSeed = []byte("profile")
)

// DeriveProfileAddress returns the profile PDA for an (authority, service)
// pair, matching the program's seed layout.
func DeriveProfileAddress(programID, authority, service solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{profileSeed, authority.Bytes(), service.Bytes()},
		programID,
	)
}
