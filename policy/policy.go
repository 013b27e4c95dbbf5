// Package policy decides how many votes a proposal needs and what its tally
// amounts to. It holds no state.
package policy

import (
	"time"

	"github.com/calehh/fluxdao/types"
)

// Tally is the vote count of a proposal at a point in time.
type Tally struct {
	Yes      uint64
	No       uint64
	Amount   *uint64
	Deadline time.Time
}

func TallyOf(p *types.Proposal) Tally {
	return Tally{
		Yes:      p.VoteYes,
		No:       p.VoteNo,
		Amount:   types.KindAmount(p.Kind),
		Deadline: p.VotePeriodEnd,
	}
}

// RequiredVotes returns the yes votes needed to pass an unopposed proposal
// moving amount. The first item whose ceiling exceeds amount applies; a nil
// amount, or one above every ceiling, takes the highest item.
func RequiredVotes(p types.Policy, councilSize uint64, amount *uint64) uint64 {
	if len(p) == 0 {
		return 0
	}
	if len(p) == 1 || amount == nil {
		return MaxVotes(p, councilSize)
	}
	for _, item := range p {
		if item.MaxAmount > *amount {
			return item.Votes.Votes(councilSize)
		}
	}
	return MaxVotes(p, councilSize)
}

// MaxVotes returns the requirement of the highest ceiling item. Reaching it
// accepts a proposal regardless of opposition.
func MaxVotes(p types.Policy, councilSize uint64) uint64 {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Votes.Votes(councilSize)
}

// Resolve computes the outcome of a tally. The rules apply in order and the
// first match wins.
func Resolve(t Tally, p types.Policy, councilSize uint64, now time.Time) types.ProposalStatus {
	maxVotes := MaxVotes(p, councilSize)
	expired := now.After(t.Deadline)
	switch {
	case t.Yes >= maxVotes:
		return types.ProposalStatusAccepted
	case t.Yes >= RequiredVotes(p, councilSize, t.Amount) && t.No == 0:
		if expired {
			return types.ProposalStatusAccepted
		}
		return types.ProposalStatusDelayed
	case t.No >= maxVotes:
		return types.ProposalStatusRejected
	case expired || t.Yes+t.No == councilSize:
		return types.ProposalStatusFailed
	}
	return types.ProposalStatusVoting
}

// ResolveSimple is the binary variant: a proposal either reaches its
// requirement or is rejected once the deadline passes.
func ResolveSimple(t Tally, p types.Policy, councilSize uint64, now time.Time) types.ProposalStatus {
	switch {
	case t.Yes >= RequiredVotes(p, councilSize, t.Amount):
		return types.ProposalStatusAccepted
	case now.After(t.Deadline):
		return types.ProposalStatusRejected
	}
	return types.ProposalStatusVoting
}

// Resolver is the signature shared by Resolve and ResolveSimple.
type Resolver func(t Tally, p types.Policy, councilSize uint64, now time.Time) types.ProposalStatus

func ResolverFor(simple bool) Resolver {
	if simple {
		return ResolveSimple
	}
	return Resolve
}
