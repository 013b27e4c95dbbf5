package types

import (
	"math/bits"

	"github.com/pkg/errors"
)

var (
	ErrPolicyEmpty    = errors.New("policy is empty")
	ErrPolicyUnsorted = errors.New("policy must be sorted by max amount")
	ErrVotesInvalid   = errors.New("vote requirement invalid")
)

// NumOrRatio is a vote requirement: either an absolute number of votes or a
// ratio of the current council size.
type NumOrRatio struct {
	Num   uint64   `json:"num,omitempty" mapstructure:"num"`
	Ratio []uint64 `json:"ratio,omitempty" mapstructure:"ratio"`
}

func Num(n uint64) NumOrRatio {
	return NumOrRatio{Num: n}
}

func Ratio(numerator, denominator uint64) NumOrRatio {
	return NumOrRatio{Ratio: []uint64{numerator, denominator}}
}

func (v NumOrRatio) IsRatio() bool {
	return len(v.Ratio) != 0
}

// Votes returns the number of votes required for a council of the given size.
// Ratios round up and never require fewer than one vote, so an empty council
// cannot accept anything.
func (v NumOrRatio) Votes(councilSize uint64) uint64 {
	if !v.IsRatio() {
		return v.Num
	}
	n, d := v.Ratio[0], v.Ratio[1]
	if d == 0 {
		return 1
	}
	if n > d {
		n = d
	}
	// ceil(n*councilSize/d) in 128 bits; n <= d keeps the quotient in range.
	hi, lo := bits.Mul64(n, councilSize)
	lo, carry := bits.Add64(lo, d-1, 0)
	hi += carry
	q, _ := bits.Div64(hi, lo, d)
	if q == 0 {
		return 1
	}
	return q
}

func (v NumOrRatio) Validate() error {
	if v.IsRatio() {
		if v.Num != 0 {
			return errors.Wrap(ErrVotesInvalid, "both num and ratio set")
		}
		if len(v.Ratio) != 2 {
			return errors.Wrapf(ErrVotesInvalid, "ratio needs 2 terms, got %d", len(v.Ratio))
		}
		if v.Ratio[0] == 0 || v.Ratio[1] == 0 {
			return errors.Wrapf(ErrVotesInvalid, "ratio %d/%d", v.Ratio[0], v.Ratio[1])
		}
		if v.Ratio[0] > v.Ratio[1] {
			return errors.Wrapf(ErrVotesInvalid, "ratio %d/%d exceeds 1", v.Ratio[0], v.Ratio[1])
		}
		return nil
	}
	if v.Num == 0 {
		return errors.Wrap(ErrVotesInvalid, "zero votes")
	}
	return nil
}

type PolicyItem struct {
	MaxAmount uint64     `json:"max_amount" mapstructure:"max_amount"`
	Votes     NumOrRatio `json:"votes" mapstructure:"votes"`
}

// Policy is an ordered list of vote requirements keyed by amount ceiling. A
// single item policy applies the same requirement to every proposal.
type Policy []PolicyItem

func DefaultPolicy() Policy {
	return Policy{{MaxAmount: 0, Votes: Ratio(1, 2)}}
}

func (p Policy) Validate() error {
	if len(p) == 0 {
		return ErrPolicyEmpty
	}
	for i, item := range p {
		if err := item.Votes.Validate(); err != nil {
			return errors.Wrapf(err, "policy item %d", i)
		}
		if i > 0 && item.MaxAmount <= p[i-1].MaxAmount {
			return errors.Wrapf(ErrPolicyUnsorted, "item %d is wrong", i)
		}
	}
	return nil
}

func (p Policy) Clone() Policy {
	if p == nil {
		return nil
	}
	n := make(Policy, len(p))
	for i, item := range p {
		n[i] = item
		if item.Votes.Ratio != nil {
			n[i].Votes.Ratio = append([]uint64(nil), item.Votes.Ratio...)
		}
	}
	return n
}
