package types

import (
	"testing"

	"github.com/pkg/errors"
)

func TestVotes(t *testing.T) {
	const big = uint64(1) << 63
	cases := []struct {
		name    string
		votes   NumOrRatio
		council uint64
		want    uint64
	}{
		{"num", Num(3), 10, 3},
		{"half rounds up", Ratio(1, 2), 3, 2},
		{"whole council", Ratio(1, 1), 5, 5},
		{"empty council needs a vote", Ratio(1, 2), 0, 1},
		{"small ratio needs a vote", Ratio(1, 1000), 3, 1},
		{"huge terms", Ratio(big, big), 2, 2},
		{"huge denominator", Ratio(big-1, big), 4, 4},
		{"huge council", Ratio(1, 2), ^uint64(0), big},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.votes.Votes(c.council); got != c.want {
				t.Fatalf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestNumOrRatioValidate(t *testing.T) {
	cases := []struct {
		name  string
		votes NumOrRatio
		ok    bool
	}{
		{"num", Num(1), true},
		{"ratio", Ratio(2, 3), true},
		{"full ratio", Ratio(1<<63, 1<<63), true},
		{"zero num", Num(0), false},
		{"zero numerator", Ratio(0, 2), false},
		{"zero denominator", Ratio(1, 0), false},
		{"above one", Ratio(3, 2), false},
		{"both set", NumOrRatio{Num: 1, Ratio: []uint64{1, 2}}, false},
		{"three terms", NumOrRatio{Ratio: []uint64{1, 2, 3}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.votes.Validate()
			if c.ok && err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			if !c.ok && !errors.Is(err, ErrVotesInvalid) {
				t.Fatalf("got %v, want ErrVotesInvalid", err)
			}
		})
	}
}
