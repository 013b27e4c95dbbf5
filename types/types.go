package types

import (
	"fmt"
	"strconv"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventProposalType             = "proposal"
	EventVoteType                 = "vote"
	EventProposalStatusType       = "proposal_status"
	EventCouncilType              = "council"
	EventTransferType             = "transfer"
	EventExternalActionType       = "external_action"
	EventExternalConfirmationType = "external_confirmation"
)

const (
	CouncilActionAdd    = "add"
	CouncilActionRemove = "remove"
)

type EventProposal struct {
	ProposalID    uint64    `json:"proposalId"`
	Proposer      AccountID `json:"proposer"`
	Kind          KindType  `json:"kind"`
	Bond          uint64    `json:"bond"`
	VotePeriodEnd time.Time `json:"votePeriodEnd"`
	Description   string    `json:"description"`
}

func EncodeEventProposal(event *EventProposal) abci.Event {
	return abci.Event{
		Type: EventProposalType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "proposer", Value: string(event.Proposer), Index: true},
			{Key: "kind", Value: string(event.Kind), Index: true},
			{Key: "bond", Value: fmt.Sprintf("%v", event.Bond), Index: false},
			{Key: "votePeriodEnd", Value: fmt.Sprintf("%v", event.VotePeriodEnd.UnixNano()), Index: false},
			{Key: "description", Value: event.Description, Index: false},
		},
	}
}

func DecodeEventProposal(originEvent abci.Event) *EventProposal {
	event := &EventProposal{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "proposer":
			event.Proposer = AccountID(v.Value)
		case "kind":
			event.Kind = KindType(v.Value)
		case "bond":
			bond, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Bond = bond
		case "votePeriodEnd":
			end, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.VotePeriodEnd = time.Unix(0, end).UTC()
		case "description":
			event.Description = v.Value
		}
	}
	return event
}

type EventVote struct {
	ProposalID uint64    `json:"proposalId"`
	Voter      AccountID `json:"voter"`
	Vote       Vote      `json:"vote"`
	VoteYes    uint64    `json:"voteYes"`
	VoteNo     uint64    `json:"voteNo"`
}

func EncodeEventVote(event *EventVote) abci.Event {
	return abci.Event{
		Type: EventVoteType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "voter", Value: string(event.Voter), Index: true},
			{Key: "vote", Value: event.Vote.String(), Index: false},
			{Key: "yes", Value: fmt.Sprintf("%v", event.VoteYes), Index: false},
			{Key: "no", Value: fmt.Sprintf("%v", event.VoteNo), Index: false},
		},
	}
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "voter":
			event.Voter = AccountID(v.Value)
		case "vote":
			vote, err := ParseVote(v.Value)
			if err != nil {
				return nil
			}
			event.Vote = vote
		case "yes":
			yes, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.VoteYes = yes
		case "no":
			no, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.VoteNo = no
		}
	}
	return event
}

type EventProposalStatus struct {
	ProposalID uint64         `json:"proposalId"`
	Status     ProposalStatus `json:"status"`
}

func EncodeEventProposalStatus(event *EventProposalStatus) abci.Event {
	return abci.Event{
		Type: EventProposalStatusType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "status", Value: event.Status.String(), Index: true},
		},
	}
}

func DecodeEventProposalStatus(originEvent abci.Event) *EventProposalStatus {
	event := &EventProposalStatus{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "status":
			status, err := ParseProposalStatus(v.Value)
			if err != nil {
				return nil
			}
			event.Status = status
		}
	}
	return event
}

type EventCouncil struct {
	Member AccountID `json:"member"`
	Action string    `json:"action"`
}

func EncodeEventCouncil(event *EventCouncil) abci.Event {
	return abci.Event{
		Type: EventCouncilType,
		Attributes: []abci.EventAttribute{
			{Key: "member", Value: string(event.Member), Index: true},
			{Key: "action", Value: event.Action, Index: false},
		},
	}
}

func DecodeEventCouncil(originEvent abci.Event) *EventCouncil {
	event := &EventCouncil{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "member":
			event.Member = AccountID(v.Value)
		case "action":
			event.Action = v.Value
		}
	}
	return event
}

func EncodeEventTransfer(event *Transfer) abci.Event {
	return abci.Event{
		Type: EventTransferType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "from", Value: string(event.From), Index: true},
			{Key: "to", Value: string(event.To), Index: true},
			{Key: "amount", Value: fmt.Sprintf("%v", event.Amount), Index: false},
			{Key: "reason", Value: event.Reason, Index: false},
		},
	}
}

func DecodeEventTransfer(originEvent abci.Event) *Transfer {
	event := &Transfer{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "from":
			event.From = AccountID(v.Value)
		case "to":
			event.To = AccountID(v.Value)
		case "amount":
			amount, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Amount = amount
		case "reason":
			event.Reason = v.Value
		}
	}
	return event
}

func EncodeEventExternalAction(event *ExternalAction) abci.Event {
	kind, _ := EncodeKind(event.Kind)
	return abci.Event{
		Type: EventExternalActionType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "target", Value: event.Target, Index: false},
			{Key: "kind", Value: string(kind), Index: false},
		},
	}
}

func DecodeEventExternalAction(originEvent abci.Event) *ExternalAction {
	event := &ExternalAction{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "target":
			event.Target = v.Value
		case "kind":
			kind, err := DecodeKind([]byte(v.Value))
			if err != nil {
				return nil
			}
			event.Kind = kind
		}
	}
	return event
}

func EncodeEventExternalConfirmation(event *Confirmation) abci.Event {
	return abci.Event{
		Type: EventExternalConfirmationType,
		Attributes: []abci.EventAttribute{
			{Key: "proposal", Value: fmt.Sprintf("%v", event.ProposalID), Index: true},
			{Key: "succeeded", Value: fmt.Sprintf("%v", event.Succeeded), Index: false},
		},
	}
}

func DecodeEventExternalConfirmation(originEvent abci.Event) *Confirmation {
	event := &Confirmation{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "proposal":
			proposal, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.ProposalID = proposal
		case "succeeded":
			succeeded, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Succeeded = succeeded
		}
	}
	return event
}
