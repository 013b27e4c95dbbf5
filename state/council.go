package state

import (
	"fmt"
	"sort"

	"github.com/calehh/fluxdao/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

func (s *State) IsMember(id types.AccountID) bool {
	_, ok := s.council[id]
	return ok
}

// Council returns the members in ascending order.
func (s *State) Council() []types.AccountID {
	members := make([]types.AccountID, 0, len(s.council))
	for m := range s.council {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

func (s *State) CouncilSize() uint64 {
	return uint64(len(s.council))
}

func (s *State) insertMember(id types.AccountID) {
	if s.IsMember(id) {
		return
	}
	s.council[id] = struct{}{}
	s.modifiedCouncil = true
	s.emit(types.EncodeEventCouncil(&types.EventCouncil{Member: id, Action: types.CouncilActionAdd}))
}

// kickMember removes id from the council. A member whose latest vote sits on
// an open proposal about someone else cannot be removed until it resolves.
func (s *State) kickMember(id types.AccountID) error {
	if !s.IsMember(id) {
		return errors.Wrapf(ErrNotInCouncil, "%s", id)
	}
	lv, ok, err := s.lastVote(id)
	if err != nil {
		return err
	}
	if ok {
		p, err := s.readProposal(lv)
		if err != nil {
			return err
		}
		if p.Status.IsOpen() && types.KindSubject(p.Kind) != id {
			return errors.Wrapf(ErrVotingActive, "%s voted on open proposal %d", id, lv)
		}
	}
	delete(s.council, id)
	s.modifiedCouncil = true
	s.emit(types.EncodeEventCouncil(&types.EventCouncil{Member: id, Action: types.CouncilActionRemove}))
	return nil
}

func (s *State) lastVote(id types.AccountID) (uint64, bool, error) {
	if v, ok := s.lastVotes[id]; ok {
		return v, true, nil
	}
	val, err := s.get(fmt.Sprintf(KeyLastVote, id))
	if err != nil || val == nil {
		return 0, false, err
	}
	var v uint64
	if err = rlp.DecodeBytes(val, &v); err != nil {
		return 0, false, errors.Wrapf(err, "decode last vote of %s", id)
	}
	return v, true, nil
}

func (s *State) setLastVote(id types.AccountID, proposal uint64) {
	s.lastVotes[id] = proposal
	s.modifiedLastVotes[id] = struct{}{}
}
