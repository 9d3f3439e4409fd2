package model

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestConcernedAccountsTable(t *testing.T) {
	profile := solana.NewWallet().PublicKey()
	service := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	cases := []struct {
		name string
		data EventData
		want []solana.PublicKey
	}{
		{
			name: "profile created concerns profile and service",
			data: &ProfileCreatedEvent{Profile: profile, Service: service, Authority: authority},
			want: []solana.PublicKey{profile, service},
		},
		{
			name: "profile funded concerns profile only",
			data: &ProfileFundedEvent{Profile: profile, Funder: authority, Amount: 1},
			want: []solana.PublicKey{profile},
		},
		{
			name: "payment executed concerns profile and service",
			data: &PaymentExecutedEvent{Profile: profile, Service: service, Amount: 1},
			want: []solana.PublicKey{profile, service},
		},
		{
			name: "authority changed concerns profile only",
			data: &AuthorityChangedEvent{Profile: profile, PreviousAuthority: authority, NewAuthority: service},
			want: []solana.PublicKey{profile},
		},
		{
			name: "profile closed concerns profile and service",
			data: &ProfileClosedEvent{Profile: profile, Service: service, Refund: 1},
			want: []solana.PublicKey{profile, service},
		},
		{
			name: "unknown concerns nothing",
			data: &UnknownEvent{Payload: []byte{1}},
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.data.ConcernedAccounts()
			if len(got) != len(tc.want) {
				t.Fatalf("got %d accounts, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("account %d = %s, want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSourceString(t *testing.T) {
	if SourceLive.String() != "live" || SourceCatchup.String() != "catchup" {
		t.Fatalf("source labels wrong: %s, %s", SourceLive, SourceCatchup)
	}
}
