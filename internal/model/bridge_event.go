package model

import "github.com/gagliardetto/solana-go"

// Source tags which synchronization path produced an event. It only selects
// the listener sub-stream an event is delivered on; it carries no business
// meaning.
type Source int

const (
	SourceLive Source = iota
	SourceCatchup
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceCatchup:
		return "catchup"
	default:
		return "unknown"
	}
}

// BridgeEvent is one decoded program event together with its provenance
// and ledger position.
type BridgeEvent struct {
	Source    Source
	Slot      uint64
	Signature solana.Signature
	Data      EventData
}
