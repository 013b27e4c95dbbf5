package state

import (
	"time"

	"github.com/calehh/fluxdao/types"
	"github.com/pkg/errors"
)

const (
	ExternalOutcomeSuccess = "success"
	ExternalOutcomeFailure = "failure"
)

// FinalizeExternal hands an accepted delegated proposal to the external
// system. An open proposal is resolved first. The proposal stays Accepted
// until OnExternalConfirmation reports the result.
func (s *State) FinalizeExternal(caller types.AccountID, id uint64, now time.Time) error {
	return s.atomically(func(n *State) error {
		n.logger.Debug("apply finalize external", "caller", caller, "proposal", id, "height", n.header.Height)
		p, err := n.getProposal(id)
		if err != nil {
			return err
		}
		return n.finalizeExternal(p, now)
	})
}

func (s *State) finalizeExternal(p *types.Proposal, now time.Time) error {
	if !p.Kind.Delegated() {
		return errors.Wrapf(ErrValidation, "%s is not delegated", p.Kind.Type())
	}
	switch p.Status {
	case types.ProposalStatusFinalized, types.ProposalStatusRejected, types.ProposalStatusFailed:
		return errors.Wrapf(ErrAlreadyFinalized, "proposal %d is %v", p.ID, p.Status)
	}
	if p.External != nil && p.External.Pending {
		return errors.Wrapf(ErrAlreadyFinalized, "proposal %d is awaiting the external system", p.ID)
	}
	if p.Status.IsOpen() {
		status := s.resolve(p, now)
		if status.IsOpen() {
			return errors.Wrapf(ErrNotResolved, "proposal %d is %v", p.ID, status)
		}
		return s.applyOutcome(p, status, now)
	}
	if s.graceActive(p, now) {
		return errors.Wrapf(ErrGracePeriodActive, "proposal %d until %v", p.ID, p.LastVote.Add(s.params.GracePeriod))
	}
	s.submitExternal(p, now)
	return nil
}

// acceptExternal records a delegated proposal as Accepted. Submission waits
// for a later FinalizeExternal while the grace period runs.
func (s *State) acceptExternal(p *types.Proposal, now time.Time) error {
	s.setStatus(p, types.ProposalStatusAccepted)
	if s.graceActive(p, now) {
		s.logger.Info("external action deferred by grace period", "proposal", p.ID)
		return nil
	}
	s.submitExternal(p, now)
	return nil
}

func (s *State) graceActive(p *types.Proposal, now time.Time) bool {
	return types.NeedsGracePeriod(p.Kind) && now.Before(p.LastVote.Add(s.params.GracePeriod))
}

func (s *State) submitExternal(p *types.Proposal, now time.Time) {
	if p.External == nil {
		p.External = &types.ExternalState{}
	}
	p.External.Pending = true
	p.External.Attempts += 1
	p.External.LastSubmitted = now
	p.External.LastOutcome = ""
	s.putProposal(p)

	action := types.ExternalAction{ProposalID: p.ID, Target: s.params.ExternalAddress, Kind: p.Kind}
	s.outbox.Actions = append(s.outbox.Actions, action)
	s.emit(types.EncodeEventExternalAction(&action))
	s.logger.Info("external action submitted", "proposal", p.ID, "kind", p.Kind.Type(), "attempt", p.External.Attempts)
}

// OnExternalConfirmation records the external system's answer. Only the
// engine's own identity may call it. A failure leaves the proposal Accepted
// and is not retried.
func (s *State) OnExternalConfirmation(caller types.AccountID, id uint64, succeeded bool, now time.Time) error {
	return s.atomically(func(n *State) error {
		return n.onExternalConfirmation(caller, id, succeeded, now)
	})
}

func (s *State) onExternalConfirmation(caller types.AccountID, id uint64, succeeded bool, now time.Time) error {
	s.logger.Debug("apply external confirmation", "proposal", id, "succeeded", succeeded, "height", s.header.Height)
	if caller != s.params.SelfAddress {
		return errors.Wrapf(ErrUnauthorized, "%s may not confirm external actions", caller)
	}
	p, err := s.getProposal(id)
	if err != nil {
		return err
	}
	if !p.Kind.Delegated() {
		return errors.Wrapf(ErrValidation, "%s is not delegated", p.Kind.Type())
	}
	if p.Status == types.ProposalStatusFinalized {
		return errors.Wrapf(ErrAlreadyFinalized, "proposal %d", id)
	}
	if p.Status != types.ProposalStatusAccepted {
		return errors.Wrapf(ErrNotResolved, "proposal %d is %v", id, p.Status)
	}
	if p.External == nil {
		p.External = &types.ExternalState{}
	}
	p.External.Pending = false
	s.emit(types.EncodeEventExternalConfirmation(&types.Confirmation{ProposalID: id, Succeeded: succeeded}))
	if !succeeded {
		p.External.LastOutcome = ExternalOutcomeFailure
		s.putProposal(p)
		s.logger.Info("external action failed", "proposal", id)
		return nil
	}
	p.External.LastOutcome = ExternalOutcomeSuccess
	s.setStatus(p, types.ProposalStatusFinalized)
	s.refundBond(p)
	return nil
}

// PendingActions rebuilds the actions still waiting for a confirmation, so
// a restarted node can hand them out again.
func (s *State) PendingActions() ([]types.ExternalAction, error) {
	var actions []types.ExternalAction
	for id := uint64(0); id < s.proposalCount; id++ {
		p, err := s.readProposal(id)
		if err != nil {
			return nil, err
		}
		if p.External == nil || !p.External.Pending {
			continue
		}
		actions = append(actions, types.ExternalAction{ProposalID: id, Target: s.params.ExternalAddress, Kind: p.Kind})
	}
	return actions, nil
}
