package bridge

import (
	"encoding/base64"
	"strings"

	bin "github.com/gagliardetto/binary"

	"bridgewatch/internal/model"
)

// Program event payloads ride inside ordinary log lines with this prefix,
// followed by base64(discriminator ++ borsh payload).
const logDataPrefix = "Program data: "

// variants is the decode table, tried in order; first discriminator match
// wins. Order is stable so decoding is deterministic across runs.
var variants = []struct {
	disc [8]byte
	make func() model.EventData
}{
	{EventDiscriminator("ProfileCreated"), func() model.EventData { return new(model.ProfileCreatedEvent) }},
	{EventDiscriminator("ProfileFunded"), func() model.EventData { return new(model.ProfileFundedEvent) }},
	{EventDiscriminator("PaymentExecuted"), func() model.EventData { return new(model.PaymentExecutedEvent) }},
	{EventDiscriminator("AuthorityChanged"), func() model.EventData { return new(model.AuthorityChangedEvent) }},
	{EventDiscriminator("ProfileClosed"), func() model.EventData { return new(model.ProfileClosedEvent) }},
}

// DecodeLogLine maps one raw log line to a typed event payload.
//
// Log lines are untrusted text: anything that does not carry the event
// prefix, fails base64, is shorter than a discriminator, or fails borsh
// decoding yields (nil, false) rather than an error, so one malformed line
// can never abort synchronization. A well-formed payload whose
// discriminator is not in the table decodes to *model.UnknownEvent.
func DecodeLogLine(line string) (model.EventData, bool) {
	encoded, ok := strings.CutPrefix(line, logDataPrefix)
	if !ok {
		return nil, false
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < 8 {
		return nil, false
	}

	var disc [8]byte
	copy(disc[:], raw[:8])

	for _, v := range variants {
		if v.disc != disc {
			continue
		}
		event := v.make()
		if err := bin.NewBorshDecoder(raw[8:]).Decode(event); err != nil {
			return nil, false
		}
		return event, true
	}

	return &model.UnknownEvent{Discriminator: disc, Payload: raw[8:]}, true
}

// DecodeLogs decodes every event-bearing line of a transaction's log output,
// preserving emission order.
func DecodeLogs(logs []string) []model.EventData {
	var events []model.EventData
	for _, line := range logs {
		if event, ok := DecodeLogLine(line); ok {
			events = append(events, event)
		}
	}
	return events
}
