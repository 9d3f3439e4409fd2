package bridge

import (
	"bytes"
	"encoding/base64"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"bridgewatch/internal/model"
)

func encodeEventLine(t *testing.T, name string, payload interface{}) string {
	t.Helper()

	disc := EventDiscriminator(name)
	buf := bytes.NewBuffer(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(payload); err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return logDataPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeLogLinePaymentExecuted(t *testing.T) {
	profile := solana.NewWallet().PublicKey()
	service := solana.NewWallet().PublicKey()

	line := encodeEventLine(t, "PaymentExecuted", model.PaymentExecutedEvent{
		Profile:   profile,
		Service:   service,
		Amount:    2_500_000,
		Timestamp: 1700000123,
	})

	data, ok := DecodeLogLine(line)
	if !ok {
		t.Fatalf("expected an event")
	}

	event, ok := data.(*model.PaymentExecutedEvent)
	if !ok {
		t.Fatalf("wrong variant: %T", data)
	}
	if event.Profile != profile || event.Service != service {
		t.Fatalf("account mismatch: %+v", event)
	}
	if event.Amount != 2_500_000 {
		t.Fatalf("amount mismatch: %d", event.Amount)
	}
	if event.Timestamp != 1700000123 {
		t.Fatalf("timestamp mismatch: %d", event.Timestamp)
	}

	concerned := event.ConcernedAccounts()
	if len(concerned) != 2 || concerned[0] != profile || concerned[1] != service {
		t.Fatalf("concerned accounts mismatch: %v", concerned)
	}
}

func TestDecodeLogLineProfileCreated(t *testing.T) {
	profile := solana.NewWallet().PublicKey()
	service := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	line := encodeEventLine(t, "ProfileCreated", model.ProfileCreatedEvent{
		Profile:   profile,
		Service:   service,
		Authority: authority,
		Timestamp: 1690001111,
	})

	data, ok := DecodeLogLine(line)
	if !ok {
		t.Fatalf("expected an event")
	}
	event, ok := data.(*model.ProfileCreatedEvent)
	if !ok {
		t.Fatalf("wrong variant: %T", data)
	}
	if event.Authority != authority {
		t.Fatalf("authority mismatch: %s", event.Authority)
	}
}

func TestDecodeLogLineUnknownDiscriminator(t *testing.T) {
	disc := EventDiscriminator("SomeFutureEvent")
	payload := append(disc[:], 0xde, 0xad, 0xbe, 0xef)
	line := logDataPrefix + base64.StdEncoding.EncodeToString(payload)

	data, ok := DecodeLogLine(line)
	if !ok {
		t.Fatalf("expected the unknown catch-all")
	}
	unknown, ok := data.(*model.UnknownEvent)
	if !ok {
		t.Fatalf("wrong variant: %T", data)
	}
	if unknown.Discriminator != disc {
		t.Fatalf("discriminator not preserved")
	}
	if !bytes.Equal(unknown.Payload, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("payload not preserved: %x", unknown.Payload)
	}
	if len(unknown.ConcernedAccounts()) != 0 {
		t.Fatalf("unknown events must not route anywhere")
	}
}

func TestDecodeLogLineRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"no prefix", "Program log: Instruction: CreateProfile"},
		{"bad base64", logDataPrefix + "%%%not-base64%%%"},
		{"short payload", logDataPrefix + base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
		{"empty suffix", logDataPrefix},
	}

	for _, tc := range cases {
		if data, ok := DecodeLogLine(tc.line); ok {
			t.Fatalf("%s: expected no event, got %T", tc.name, data)
		}
	}
}

func TestDecodeLogLineTruncatedBody(t *testing.T) {
	disc := EventDiscriminator("ProfileFunded")
	// Discriminator matches but the borsh body is cut short.
	payload := append(disc[:], 0x01, 0x02)
	line := logDataPrefix + base64.StdEncoding.EncodeToString(payload)

	if data, ok := DecodeLogLine(line); ok {
		t.Fatalf("expected no event for truncated body, got %T", data)
	}
}

func TestDecodeLogsPreservesOrder(t *testing.T) {
	profile := solana.NewWallet().PublicKey()
	funder := solana.NewWallet().PublicKey()

	logs := []string{
		"Program log: Instruction: FundProfile",
		encodeEventLine(t, "ProfileFunded", model.ProfileFundedEvent{
			Profile: profile, Funder: funder, Amount: 10, Timestamp: 1,
		}),
		"Program consumed 2001 of 200000 compute units",
		encodeEventLine(t, "ProfileFunded", model.ProfileFundedEvent{
			Profile: profile, Funder: funder, Amount: 20, Timestamp: 2,
		}),
	}

	events := DecodeLogs(logs)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first := events[0].(*model.ProfileFundedEvent)
	second := events[1].(*model.ProfileFundedEvent)
	if first.Amount != 10 || second.Amount != 20 {
		t.Fatalf("order not preserved: %d, %d", first.Amount, second.Amount)
	}
}
