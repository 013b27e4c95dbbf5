package state

import (
	"time"

	"github.com/calehh/fluxdao/types"
	"github.com/pkg/errors"
)

// AddProposal appends a proposal in Voting status and returns its id.
// deposit is the amount the caller offers; the proposal holds only the bond
// its kind requires, and that bond is collected from the caller.
func (s *State) AddProposal(caller types.AccountID, in *types.ProposalInput, deposit uint64, now time.Time) (id uint64, err error) {
	err = s.atomically(func(n *State) (err error) {
		id, err = n.addProposal(caller, in, deposit, now)
		return
	})
	return
}

func (s *State) addProposal(caller types.AccountID, in *types.ProposalInput, deposit uint64, now time.Time) (uint64, error) {
	s.logger.Debug("apply proposal", "proposer", caller, "height", s.header.Height)
	if err := in.ValidateBasic(); err != nil {
		return 0, errors.Wrap(ErrValidation, err.Error())
	}
	if s.params.CouncilOnly && !s.IsMember(caller) {
		return 0, errors.Wrapf(ErrUnauthorized, "%s is not a council member", caller)
	}
	kind := in.Kind.ProposalKind
	bond := s.params.MinDeposit(kind)
	if deposit < bond {
		return 0, errors.Wrapf(ErrInsufficientBond, "%s needs %d, got %d", kind.Type(), bond, deposit)
	}
	p := &types.Proposal{
		Proposer:      caller,
		Description:   in.Description,
		Kind:          kind,
		Bond:          bond,
		Status:        types.ProposalStatusVoting,
		VotePeriodEnd: now.Add(s.params.VotePeriod),
		LastVote:      now,
		Votes:         map[types.AccountID]types.Vote{},
	}
	id := s.appendProposal(p)
	s.emit(types.EncodeEventProposal(&types.EventProposal{
		ProposalID:    id,
		Proposer:      caller,
		Kind:          kind.Type(),
		Bond:          bond,
		VotePeriodEnd: p.VotePeriodEnd,
		Description:   p.Description,
	}))
	s.collectBond(p)
	return id, nil
}

// Vote casts caller's vote on proposal id. A vote arriving after the deadline
// is not counted; it finalizes the proposal with the tally it has.
func (s *State) Vote(caller types.AccountID, id uint64, vote types.Vote, now time.Time) error {
	return s.atomically(func(n *State) error {
		return n.vote(caller, id, vote, now)
	})
}

func (s *State) vote(caller types.AccountID, id uint64, vote types.Vote, now time.Time) error {
	s.logger.Debug("apply vote", "voter", caller, "proposal", id, "height", s.header.Height)
	if vote != types.VoteYes && vote != types.VoteNo {
		return errors.Wrapf(ErrValidation, "vote %d", vote)
	}
	p, err := s.getProposal(id)
	if err != nil {
		return err
	}
	if !s.IsMember(caller) {
		return errors.Wrapf(ErrUnauthorized, "%s is not a council member", caller)
	}
	if p.Status.IsFinalized() {
		return errors.Wrapf(ErrAlreadyFinalized, "proposal %d is %v", id, p.Status)
	}
	if now.After(p.VotePeriodEnd) {
		s.logger.Info("voting period expired, finalizing", "proposal", id)
		return s.finalize(p, now)
	}
	if _, ok := p.Votes[caller]; ok {
		return errors.Wrapf(ErrAlreadyVoted, "%s on proposal %d", caller, id)
	}
	switch vote {
	case types.VoteYes:
		p.VoteYes += 1
	case types.VoteNo:
		p.VoteNo += 1
	}
	p.Votes[caller] = vote
	p.LastVote = now
	s.setLastVote(caller, id)
	s.putProposal(p)
	s.emit(types.EncodeEventVote(&types.EventVote{
		ProposalID: id,
		Voter:      caller,
		Vote:       vote,
		VoteYes:    p.VoteYes,
		VoteNo:     p.VoteNo,
	}))

	status := s.resolve(p, now)
	if status.IsOpen() {
		p.VotePeriodEnd = now.Add(s.params.GracePeriod)
		s.setStatus(p, status)
		return nil
	}
	return s.applyOutcome(p, status, now)
}

// Finalize settles proposal id once its outcome is decided. Delegated kinds
// go through FinalizeExternal.
func (s *State) Finalize(caller types.AccountID, id uint64, now time.Time) error {
	return s.atomically(func(n *State) error {
		n.logger.Debug("apply finalize", "caller", caller, "proposal", id, "height", n.header.Height)
		p, err := n.getProposal(id)
		if err != nil {
			return err
		}
		return n.finalize(p, now)
	})
}

func (s *State) finalize(p *types.Proposal, now time.Time) error {
	if p.Kind.Delegated() {
		return s.finalizeExternal(p, now)
	}
	if p.Status.IsFinalized() {
		return errors.Wrapf(ErrAlreadyFinalized, "proposal %d is %v", p.ID, p.Status)
	}
	status := s.resolve(p, now)
	if status.IsOpen() {
		return errors.Wrapf(ErrNotResolved, "proposal %d is %v", p.ID, status)
	}
	return s.applyOutcome(p, status, now)
}

// Exit removes the caller from the council.
func (s *State) Exit(caller types.AccountID, now time.Time) error {
	return s.atomically(func(n *State) error {
		n.logger.Debug("apply exit", "member", caller, "height", n.header.Height)
		return n.kickMember(caller)
	})
}

func (s *State) setStatus(p *types.Proposal, status types.ProposalStatus) {
	changed := p.Status != status
	p.Status = status
	s.putProposal(p)
	if changed {
		s.emit(types.EncodeEventProposalStatus(&types.EventProposalStatus{ProposalID: p.ID, Status: status}))
	}
}

// applyOutcome moves an open proposal to a decided status and carries out
// what that status implies.
func (s *State) applyOutcome(p *types.Proposal, status types.ProposalStatus, now time.Time) error {
	switch status {
	case types.ProposalStatusAccepted:
		s.logger.Info("proposal accepted", "proposal", p.ID, "kind", p.Kind.Type())
		return p.Kind.Accept(&sideEffects{s: s, p: p, now: now})
	case types.ProposalStatusRejected, types.ProposalStatusFailed:
		s.logger.Info("proposal closed", "proposal", p.ID, "status", status)
		s.setStatus(p, status)
		s.refundBond(p)
		return nil
	}
	return errors.Errorf("unexpected outcome %v for proposal %d", status, p.ID)
}

// sideEffects carries out an accepted proposal. Local kinds complete here and
// release the bond; delegated kinds are handed to the external system.
type sideEffects struct {
	s   *State
	p   *types.Proposal
	now time.Time
}

var _ types.KindVisitor = (*sideEffects)(nil)

func (e *sideEffects) local(apply func() error) error {
	e.s.setStatus(e.p, types.ProposalStatusAccepted)
	if err := apply(); err != nil {
		return err
	}
	e.s.refundBond(e.p)
	return nil
}

func (e *sideEffects) setParams(apply func(p *Params)) error {
	return e.local(func() error {
		apply(e.s.params)
		e.s.modifiedParams = true
		return nil
	})
}

func (e *sideEffects) VisitNewCouncil(k *types.NewCouncil) error {
	return e.local(func() error {
		e.s.insertMember(k.Target)
		return nil
	})
}

func (e *sideEffects) VisitRemoveCouncil(k *types.RemoveCouncil) error {
	return e.local(func() error { return e.s.kickMember(k.Target) })
}

func (e *sideEffects) VisitPayout(k *types.Payout) error {
	return e.local(func() error {
		e.s.transfer(e.p.ID, k.Target, k.Amount, types.TransferReasonPayout)
		return nil
	})
}

func (e *sideEffects) VisitChangeVotePeriod(k *types.ChangeVotePeriod) error {
	return e.setParams(func(p *Params) { p.VotePeriod = k.VotePeriod })
}

func (e *sideEffects) VisitChangeBond(k *types.ChangeBond) error {
	return e.setParams(func(p *Params) { p.Bond = k.Bond })
}

func (e *sideEffects) VisitChangePolicy(k *types.ChangePolicy) error {
	return e.setParams(func(p *Params) { p.Policy = k.Policy.Clone() })
}

func (e *sideEffects) VisitChangePurpose(k *types.ChangePurpose) error {
	return e.setParams(func(p *Params) { p.Purpose = k.Purpose })
}

func (e *sideEffects) VisitChangeProtocolAddress(k *types.ChangeProtocolAddress) error {
	return e.setParams(func(p *Params) { p.ExternalAddress = k.Address })
}

func (e *sideEffects) VisitResoluteMarket(k *types.ResoluteMarket) error {
	return e.s.acceptExternal(e.p, e.now)
}

func (e *sideEffects) VisitSetTokenWhitelist(k *types.SetTokenWhitelist) error {
	return e.s.acceptExternal(e.p, e.now)
}

func (e *sideEffects) VisitAddTokenWhitelist(k *types.AddTokenWhitelist) error {
	return e.s.acceptExternal(e.p, e.now)
}

func (e *sideEffects) VisitSetGov(k *types.SetGov) error {
	return e.s.acceptExternal(e.p, e.now)
}

func (e *sideEffects) VisitPause(k *types.Pause) error {
	return e.s.acceptExternal(e.p, e.now)
}

func (e *sideEffects) VisitUnpause(k *types.Unpause) error {
	return e.s.acceptExternal(e.p, e.now)
}
