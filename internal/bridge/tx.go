package bridge

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// BlockhashSource supplies a recent blockhash for transaction assembly.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// CreateProfileParams describes an unsigned create_profile transaction.
type CreateProfileParams struct {
	Authority solana.PublicKey
	Service   solana.PublicKey
	Deposit   uint64
}

// BuildCreateProfileTx assembles the unsigned transaction that initializes
// a profile PDA for the given authority/service pair. Signing is the
// caller's concern; this is only a thin client of the RPC surface.
func BuildCreateProfileTx(
	ctx context.Context,
	source BlockhashSource,
	programID solana.PublicKey,
	params CreateProfileParams,
) (*solana.Transaction, error) {
	profile, _, err := DeriveProfileAddress(programID, params.Authority, params.Service)
	if err != nil {
		return nil, fmt.Errorf("derive profile address: %w", err)
	}

	disc := InstructionDiscriminator("create_profile")
	data := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(data).Encode(params.Deposit); err != nil {
		return nil, fmt.Errorf("encode instruction args: %w", err)
	}

	instruction := solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.Meta(profile).WRITE(),
			solana.Meta(params.Authority).WRITE().SIGNER(),
			solana.Meta(params.Service),
			solana.Meta(solana.SystemProgramID),
		},
		data.Bytes(),
	)

	blockhash, err := source.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		blockhash,
		solana.TransactionPayer(params.Authority),
	)
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}

	return tx, nil
}
