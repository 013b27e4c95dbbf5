package state

import (
	"encoding/json"
	"fmt"

	"github.com/calehh/fluxdao/types"
	"github.com/pkg/errors"
)

func (s *State) ProposalCount() uint64 {
	return s.proposalCount
}

// readProposal loads a proposal without touching the cache, so it is safe
// for concurrent readers of a committed state.
func (s *State) readProposal(id uint64) (*types.Proposal, error) {
	if id >= s.proposalCount {
		return nil, errors.Wrapf(ErrNotFound, "proposal %d", id)
	}
	if p, ok := s.proposals[id]; ok {
		return p, nil
	}
	val, err := s.get(fmt.Sprintf(KeyProposalBody, id))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, errors.Wrapf(ErrNotFound, "proposal %d body", id)
	}
	p := new(types.Proposal)
	if err = json.Unmarshal(val, p); err != nil {
		return nil, errors.Wrapf(err, "decode proposal %d", id)
	}
	return p, nil
}

// getProposal returns the cached, mutable proposal. Changes must be recorded
// with putProposal.
func (s *State) getProposal(id uint64) (*types.Proposal, error) {
	p, err := s.readProposal(id)
	if err != nil {
		return nil, err
	}
	s.proposals[id] = p
	return p, nil
}

func (s *State) putProposal(p *types.Proposal) {
	s.proposals[p.ID] = p
	s.modifiedProposals[p.ID] = struct{}{}
}

func (s *State) appendProposal(p *types.Proposal) uint64 {
	p.ID = s.proposalCount
	s.proposalCount += 1
	s.modifiedCount = true
	s.putProposal(p)
	return p.ID
}

// Proposal returns a copy of proposal id.
func (s *State) Proposal(id uint64) (*types.Proposal, error) {
	p, err := s.readProposal(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Proposals returns up to limit proposals starting at from. The range is
// clamped to the proposal count.
func (s *State) Proposals(from, limit uint64) ([]*types.Proposal, error) {
	end := s.proposalCount
	if from >= end {
		return []*types.Proposal{}, nil
	}
	if limit < end-from {
		end = from + limit
	}
	res := make([]*types.Proposal, 0, end-from)
	for id := from; id < end; id++ {
		p, err := s.Proposal(id)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}
