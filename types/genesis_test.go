package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestDecodeGenesisState(t *testing.T) {
	dat := []byte(`{
		"purpose": "flux protocol",
		"council": ["A", "B"],
		"bond": "100",
		"vote_period": "48h",
		"grace_period": 3600000000000,
		"self_address": "A",
		"external_address": "market.flux",
		"council_only": true
	}`)
	g, err := DecodeGenesisState(dat)
	if err != nil {
		t.Fatal(err)
	}
	if g.VotePeriod != 48*time.Hour || g.GracePeriod != time.Hour {
		t.Fatalf("got periods %v %v", g.VotePeriod, g.GracePeriod)
	}
	if g.Bond != 100 || !g.CouncilOnly || len(g.Council) != 2 {
		t.Fatalf("got %+v", g)
	}
	if len(g.Policy) != 1 || !g.Policy[0].Votes.IsRatio() {
		t.Fatalf("got policy %+v, want the default", g.Policy)
	}
	if err = g.Validate(); err != nil {
		t.Fatal(err)
	}

	out, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	again, err := DecodeGenesisState(out)
	if err != nil {
		t.Fatal(err)
	}
	if again.VotePeriod != g.VotePeriod || again.ExternalAddress != g.ExternalAddress {
		t.Fatalf("got %+v after re-encoding", again)
	}
}

func TestGenesisValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(g *GenesisState)
		ok     bool
	}{
		{"default", func(g *GenesisState) {}, true},
		{"empty council", func(g *GenesisState) { g.Council = nil }, false},
		{"duplicate member", func(g *GenesisState) { g.Council = []AccountID{"A", "A"} }, false},
		{"no self", func(g *GenesisState) { g.SelfAddress = "" }, false},
		{"zero vote period", func(g *GenesisState) { g.VotePeriod = 0 }, false},
		{"zero grace", func(g *GenesisState) { g.GracePeriod = 0 }, true},
		{"bad ratio", func(g *GenesisState) { g.Policy = Policy{{Votes: Ratio(0, 2)}} }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := DefaultGenesisState("A")
			c.modify(g)
			err := g.Validate()
			if c.ok && err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			if !c.ok && !errors.Is(err, ErrGenesisInvalid) {
				t.Fatalf("got %v, want ErrGenesisInvalid", err)
			}
		})
	}
}
