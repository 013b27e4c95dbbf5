package types

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// MaxDescriptionLength is the exclusive upper bound on a proposal description, in bytes.
const MaxDescriptionLength = 280

type AccountID string

type Vote uint8

const (
	VoteYes Vote = iota + 1
	VoteNo
)

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "Yes"
	case VoteNo:
		return "No"
	}
	return "Unknown"
}

func ParseVote(s string) (Vote, error) {
	switch s {
	case "Yes", "yes", "y":
		return VoteYes, nil
	case "No", "no", "n":
		return VoteNo, nil
	}
	return 0, errors.Errorf("unknown vote %q", s)
}

func (v Vote) MarshalText() ([]byte, error) {
	if v != VoteYes && v != VoteNo {
		return nil, errors.Errorf("unknown vote %d", v)
	}
	return []byte(v.String()), nil
}

func (v *Vote) UnmarshalText(dat []byte) (err error) {
	*v, err = ParseVote(string(dat))
	return
}

type ProposalStatus uint8

const (
	ProposalStatusVoting ProposalStatus = iota + 1
	ProposalStatusDelayed
	ProposalStatusAccepted
	ProposalStatusRejected
	ProposalStatusFailed
	ProposalStatusFinalized
)

var statusNames = map[ProposalStatus]string{
	ProposalStatusVoting:    "Voting",
	ProposalStatusDelayed:   "Delayed",
	ProposalStatusAccepted:  "Accepted",
	ProposalStatusRejected:  "Rejected",
	ProposalStatusFailed:    "Failed",
	ProposalStatusFinalized: "Finalized",
}

func (s ProposalStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

func ParseProposalStatus(name string) (ProposalStatus, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown proposal status %q", name)
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, errors.Errorf("unknown proposal status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *ProposalStatus) UnmarshalText(dat []byte) (err error) {
	*s, err = ParseProposalStatus(string(dat))
	return
}

// IsFinalized reports whether the proposal no longer takes votes.
func (s ProposalStatus) IsFinalized() bool {
	return s != ProposalStatusVoting && s != ProposalStatusDelayed
}

// IsOpen is the inverse of IsFinalized.
func (s ProposalStatus) IsOpen() bool {
	return !s.IsFinalized()
}

// ExternalState tracks a delegated proposal's hand-off to the external system.
// Pending is set from submission until the confirmation arrives.
type ExternalState struct {
	Pending       bool      `json:"pending"`
	Attempts      uint64    `json:"attempts"`
	LastSubmitted time.Time `json:"last_submitted"`
	LastOutcome   string    `json:"last_outcome,omitempty"`
}

type Proposal struct {
	ID            uint64
	Proposer      AccountID
	Description   string
	Kind          ProposalKind
	Bond          uint64
	Status        ProposalStatus
	VotePeriodEnd time.Time
	LastVote      time.Time
	VoteYes       uint64
	VoteNo        uint64
	Votes         map[AccountID]Vote
	External      *ExternalState
}

type proposalSt struct {
	ID            uint64             `json:"id"`
	Proposer      AccountID          `json:"proposer"`
	Description   string             `json:"description"`
	Kind          json.RawMessage    `json:"kind"`
	Bond          uint64             `json:"bond"`
	Status        ProposalStatus     `json:"status"`
	VotePeriodEnd time.Time          `json:"vote_period_end"`
	LastVote      time.Time          `json:"last_vote"`
	VoteYes       uint64             `json:"vote_yes"`
	VoteNo        uint64             `json:"vote_no"`
	Votes         map[AccountID]Vote `json:"votes"`
	External      *ExternalState     `json:"external,omitempty"`
}

func (p *Proposal) MarshalJSON() ([]byte, error) {
	if p.Kind == nil {
		return nil, errors.Wrapf(ErrInvalidKind, "proposal %d has no kind", p.ID)
	}
	kind, err := EncodeKind(p.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&proposalSt{
		ID:            p.ID,
		Proposer:      p.Proposer,
		Description:   p.Description,
		Kind:          kind,
		Bond:          p.Bond,
		Status:        p.Status,
		VotePeriodEnd: p.VotePeriodEnd,
		LastVote:      p.LastVote,
		VoteYes:       p.VoteYes,
		VoteNo:        p.VoteNo,
		Votes:         p.Votes,
		External:      p.External,
	})
}

func (p *Proposal) UnmarshalJSON(dat []byte) error {
	st := proposalSt{}
	if err := json.Unmarshal(dat, &st); err != nil {
		return err
	}
	kind, err := DecodeKind(st.Kind)
	if err != nil {
		return err
	}
	if st.Votes == nil {
		st.Votes = map[AccountID]Vote{}
	}
	*p = Proposal{
		ID:            st.ID,
		Proposer:      st.Proposer,
		Description:   st.Description,
		Kind:          kind,
		Bond:          st.Bond,
		Status:        st.Status,
		VotePeriodEnd: st.VotePeriodEnd,
		LastVote:      st.LastVote,
		VoteYes:       st.VoteYes,
		VoteNo:        st.VoteNo,
		Votes:         st.Votes,
		External:      st.External,
	}
	return nil
}

// Clone returns a deep copy. The kind is shared: kinds are never mutated
// after a proposal is created.
func (p *Proposal) Clone() *Proposal {
	n := *p
	n.Votes = make(map[AccountID]Vote, len(p.Votes))
	for k, v := range p.Votes {
		n.Votes[k] = v
	}
	if p.External != nil {
		ext := *p.External
		n.External = &ext
	}
	return &n
}

// ProposalInput is what a proposer submits.
type ProposalInput struct {
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

func (in *ProposalInput) ValidateBasic() error {
	if len(in.Description) >= MaxDescriptionLength {
		return errors.Errorf("description is %d bytes, must be under %d", len(in.Description), MaxDescriptionLength)
	}
	if in.Kind.ProposalKind == nil {
		return errors.Wrap(ErrInvalidKind, "missing kind")
	}
	return in.Kind.ValidateBasic()
}
