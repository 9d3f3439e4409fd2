package model

import (
	"github.com/gagliardetto/solana-go"
)

// EventData is the closed set of payloads the bridge program emits.
// Adding a variant means adding it here and to the decoder's variant table;
// nothing else in the pipeline switches on concrete types.
type EventData interface {
	// EventName returns the on-chain event name used to derive the
	// discriminator.
	EventName() string

	// ConcernedAccounts lists the PDAs a variant is routed to. The mapping
	// is a hand-maintained table per event schema, not a derived rule.
	ConcernedAccounts() []solana.PublicKey
}

// ProfileCreatedEvent is emitted when a profile PDA is initialized and
// linked to a service.
type ProfileCreatedEvent struct {
	Profile   solana.PublicKey
	Service   solana.PublicKey
	Authority solana.PublicKey
	Timestamp int64
}

func (e *ProfileCreatedEvent) EventName() string { return "ProfileCreated" }

func (e *ProfileCreatedEvent) ConcernedAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.Profile, e.Service}
}

// ProfileFundedEvent is emitted when lamports are deposited into a profile.
type ProfileFundedEvent struct {
	Profile   solana.PublicKey
	Funder    solana.PublicKey
	Amount    uint64
	Timestamp int64
}

func (e *ProfileFundedEvent) EventName() string { return "ProfileFunded" }

func (e *ProfileFundedEvent) ConcernedAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.Profile}
}

// PaymentExecutedEvent is emitted when a payment is drawn from a profile
// in favor of its service.
type PaymentExecutedEvent struct {
	Profile   solana.PublicKey
	Service   solana.PublicKey
	Amount    uint64
	Timestamp int64
}

func (e *PaymentExecutedEvent) EventName() string { return "PaymentExecuted" }

func (e *PaymentExecutedEvent) ConcernedAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.Profile, e.Service}
}

// AuthorityChangedEvent is emitted when a profile's controlling authority
// is rotated.
type AuthorityChangedEvent struct {
	Profile           solana.PublicKey
	PreviousAuthority solana.PublicKey
	NewAuthority      solana.PublicKey
}

func (e *AuthorityChangedEvent) EventName() string { return "AuthorityChanged" }

func (e *AuthorityChangedEvent) ConcernedAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.Profile}
}

// ProfileClosedEvent is emitted when a profile is torn down and any
// remaining balance refunded.
type ProfileClosedEvent struct {
	Profile   solana.PublicKey
	Service   solana.PublicKey
	Refund    uint64
	Timestamp int64
}

func (e *ProfileClosedEvent) EventName() string { return "ProfileClosed" }

func (e *ProfileClosedEvent) ConcernedAccounts() []solana.PublicKey {
	return []solana.PublicKey{e.Profile, e.Service}
}

// UnknownEvent preserves a program event whose discriminator is not in the
// variant table. It concerns no account and is therefore never delivered;
// it exists so new on-chain event types don't break older readers.
type UnknownEvent struct {
	Discriminator [8]byte
	Payload       []byte
}

func (e *UnknownEvent) EventName() string { return "Unknown" }

func (e *UnknownEvent) ConcernedAccounts() []solana.PublicKey { return nil }
