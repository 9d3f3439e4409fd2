package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// SignatureInfo is one entry of a signatures-for-address page.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
}

// TransactionLogs is the slice of a transaction the synchronizer consumes:
// its slot and raw log lines.
type TransactionLogs struct {
	Slot uint64
	Logs []string
}

// LogNotification is one message from the log subscription.
type LogNotification struct {
	Slot      uint64
	Signature solana.Signature
	Logs      []string
}

// Client wraps the Solana JSON-RPC and websocket endpoints behind the
// narrow surface the workers need.
type Client struct {
	rpcClient *rpc.Client
	wsURL     string
}

func NewClient(rpcURL, wsURL string) *Client {
	return &Client{
		rpcClient: rpc.New(rpcURL),
		wsURL:     wsURL,
	}
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// SignaturesForAddress fetches one newest-first page of signatures for the
// address, bounded above by the before cursor when it is non-zero.
func (c *Client) SignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	before solana.Signature,
	limit int,
) ([]SignatureInfo, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}
	if !before.IsZero() {
		opts.Before = before
	}

	results, err := c.rpcClient.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, fmt.Errorf("get signatures for address: %w", err)
	}

	page := make([]SignatureInfo, 0, len(results))
	for _, result := range results {
		page = append(page, SignatureInfo{
			Signature: result.Signature,
			Slot:      result.Slot,
		})
	}
	return page, nil
}

// TransactionLogs fetches a transaction and returns its slot and log lines.
func (c *Client) TransactionLogs(ctx context.Context, signature solana.Signature) (*TransactionLogs, error) {
	maxVersion := uint64(0)
	result, err := c.rpcClient.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if result.Meta == nil {
		return nil, fmt.Errorf("transaction %s has no meta", signature)
	}

	return &TransactionLogs{
		Slot: result.Slot,
		Logs: result.Meta.LogMessages,
	}, nil
}

// CurrentSlot returns the ledger's current slot.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := c.rpcClient.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// LatestBlockhash returns a recent blockhash for transaction assembly.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return result.Value.Blockhash, nil
}

// LogSubscription is one live log stream; Close tears down both the
// subscription and its websocket connection.
type LogSubscription struct {
	wsClient *ws.Client
	sub      *ws.LogSubscription
}

func (s *LogSubscription) Recv(ctx context.Context) (*LogNotification, error) {
	result, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}

	return &LogNotification{
		Slot:      result.Context.Slot,
		Signature: result.Value.Signature,
		Logs:      result.Value.Logs,
	}, nil
}

func (s *LogSubscription) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.wsClient != nil {
		s.wsClient.Close()
	}
}

// SubscribeLogs dials the websocket endpoint and subscribes to logs
// mentioning the address. Each call opens a fresh connection so a dropped
// transport can be replaced by simply subscribing again.
func (c *Client) SubscribeLogs(ctx context.Context, mentions solana.PublicKey) (*LogSubscription, error) {
	wsClient, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("connect ws: %w", err)
	}

	sub, err := wsClient.LogsSubscribeMentions(mentions, rpc.CommitmentConfirmed)
	if err != nil {
		wsClient.Close()
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}

	return &LogSubscription{wsClient: wsClient, sub: sub}, nil
}
