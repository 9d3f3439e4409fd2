package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"bridgewatch/internal/bridge"
	"bridgewatch/internal/chain"
)

func newTxCommand() *cobra.Command {
	txCmd := &cobra.Command{
		Use:   "tx",
		Short: "Build an unsigned create-profile transaction",
		RunE:  runTx,
	}

	txCmd.Flags().String("rpc", "", "Solana RPC URL")
	txCmd.Flags().String("program", "", "bridge program ID (base58)")
	txCmd.Flags().String("authority", "", "profile authority (base58, pays and signs)")
	txCmd.Flags().String("service", "", "service address the profile links to (base58)")
	txCmd.Flags().Uint64("deposit", 0, "initial deposit in lamports")

	return txCmd
}

func runTx(cmd *cobra.Command, _ []string) error {
	rpcURL, _ := cmd.Flags().GetString("rpc")
	if rpcURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	programID, err := flagPubkey(cmd, "program")
	if err != nil {
		return err
	}
	authority, err := flagPubkey(cmd, "authority")
	if err != nil {
		return err
	}
	service, err := flagPubkey(cmd, "service")
	if err != nil {
		return err
	}
	deposit, _ := cmd.Flags().GetUint64("deposit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chain.NewClient(rpcURL, "")
	defer client.Close()

	tx, err := bridge.BuildCreateProfileTx(ctx, client, programID, bridge.CreateProfileParams{
		Authority: authority,
		Service:   service,
		Deposit:   deposit,
	})
	if err != nil {
		return err
	}

	data, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize transaction: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(data))
	return nil
}

func flagPubkey(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}
