package types

import (
	"encoding/json"
)

const (
	TransferReasonPayout = "payout"
	TransferReasonRefund = "refund"
	TransferReasonBond   = "bond"
)

// Transfer is an instruction for the bank to move funds. An empty From pays
// out of the DAO treasury; an empty To collects into it. The engine records
// it, the bank carries it out.
type Transfer struct {
	ProposalID uint64    `json:"proposal_id"`
	From       AccountID `json:"from,omitempty"`
	To         AccountID `json:"to,omitempty"`
	Amount     uint64    `json:"amount"`
	Reason     string    `json:"reason"`
}

// ExternalAction is a delegated proposal handed to the external protocol.
type ExternalAction struct {
	ProposalID uint64       `json:"proposal_id"`
	Target     string       `json:"target"`
	Kind       ProposalKind `json:"-"`
}

type externalActionSt struct {
	ProposalID uint64          `json:"proposal_id"`
	Target     string          `json:"target"`
	Kind       json.RawMessage `json:"kind"`
}

func (a ExternalAction) MarshalJSON() ([]byte, error) {
	kind, err := EncodeKind(a.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&externalActionSt{ProposalID: a.ProposalID, Target: a.Target, Kind: kind})
}

func (a *ExternalAction) UnmarshalJSON(dat []byte) error {
	st := externalActionSt{}
	if err := json.Unmarshal(dat, &st); err != nil {
		return err
	}
	kind, err := DecodeKind(st.Kind)
	if err != nil {
		return err
	}
	*a = ExternalAction{ProposalID: st.ProposalID, Target: st.Target, Kind: kind}
	return nil
}

// Confirmation is the external system's answer to an ExternalAction.
type Confirmation struct {
	ProposalID uint64 `json:"proposal_id"`
	Succeeded  bool   `json:"succeeded"`
}
