package types

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnknownKind = errors.New("unknown proposal kind")
	ErrInvalidKind = errors.New("invalid proposal kind")
)

type KindType string

const (
	KindNewCouncil            KindType = "NewCouncil"
	KindRemoveCouncil         KindType = "RemoveCouncil"
	KindPayout                KindType = "Payout"
	KindChangeVotePeriod      KindType = "ChangeVotePeriod"
	KindChangeBond            KindType = "ChangeBond"
	KindChangePolicy          KindType = "ChangePolicy"
	KindChangePurpose         KindType = "ChangePurpose"
	KindChangeProtocolAddress KindType = "ChangeProtocolAddress"
	KindResoluteMarket        KindType = "ResoluteMarket"
	KindSetTokenWhitelist     KindType = "SetTokenWhitelist"
	KindAddTokenWhitelist     KindType = "AddTokenWhitelist"
	KindSetGov                KindType = "SetGov"
	KindPause                 KindType = "Pause"
	KindUnpause               KindType = "Unpause"
)

// ProposalKind is the action a proposal governs. The set of kinds is closed:
// every kind is dispatched through KindVisitor, so a new kind does not compile
// until each visitor handles it.
type ProposalKind interface {
	Type() KindType
	// Delegated kinds are carried out by the external protocol, not by the DAO.
	Delegated() bool
	ValidateBasic() error
	Accept(v KindVisitor) error
}

type KindVisitor interface {
	VisitNewCouncil(k *NewCouncil) error
	VisitRemoveCouncil(k *RemoveCouncil) error
	VisitPayout(k *Payout) error
	VisitChangeVotePeriod(k *ChangeVotePeriod) error
	VisitChangeBond(k *ChangeBond) error
	VisitChangePolicy(k *ChangePolicy) error
	VisitChangePurpose(k *ChangePurpose) error
	VisitChangeProtocolAddress(k *ChangeProtocolAddress) error
	VisitResoluteMarket(k *ResoluteMarket) error
	VisitSetTokenWhitelist(k *SetTokenWhitelist) error
	VisitAddTokenWhitelist(k *AddTokenWhitelist) error
	VisitSetGov(k *SetGov) error
	VisitPause(k *Pause) error
	VisitUnpause(k *Unpause) error
}

type localKind struct{}

func (localKind) Delegated() bool { return false }

type delegatedKind struct{}

func (delegatedKind) Delegated() bool { return true }

func requireAccount(kind KindType, field string, id AccountID) error {
	if id == "" {
		return errors.Wrapf(ErrInvalidKind, "%s: empty %s", kind, field)
	}
	return nil
}

type NewCouncil struct {
	localKind
	Target AccountID `json:"target"`
}

func (k *NewCouncil) Type() KindType             { return KindNewCouncil }
func (k *NewCouncil) ValidateBasic() error       { return requireAccount(k.Type(), "target", k.Target) }
func (k *NewCouncil) Accept(v KindVisitor) error { return v.VisitNewCouncil(k) }

type RemoveCouncil struct {
	localKind
	Target AccountID `json:"target"`
}

func (k *RemoveCouncil) Type() KindType             { return KindRemoveCouncil }
func (k *RemoveCouncil) ValidateBasic() error       { return requireAccount(k.Type(), "target", k.Target) }
func (k *RemoveCouncil) Accept(v KindVisitor) error { return v.VisitRemoveCouncil(k) }

type Payout struct {
	localKind
	Target AccountID `json:"target"`
	Amount uint64    `json:"amount"`
}

func (k *Payout) Type() KindType { return KindPayout }

func (k *Payout) ValidateBasic() error {
	if k.Amount == 0 {
		return errors.Wrap(ErrInvalidKind, "Payout: zero amount")
	}
	return requireAccount(k.Type(), "target", k.Target)
}

func (k *Payout) Accept(v KindVisitor) error { return v.VisitPayout(k) }

type ChangeVotePeriod struct {
	localKind
	VotePeriod time.Duration `json:"vote_period"`
}

func (k *ChangeVotePeriod) Type() KindType { return KindChangeVotePeriod }

func (k *ChangeVotePeriod) ValidateBasic() error {
	if k.VotePeriod <= 0 {
		return errors.Wrapf(ErrInvalidKind, "ChangeVotePeriod: %v", k.VotePeriod)
	}
	return nil
}

func (k *ChangeVotePeriod) Accept(v KindVisitor) error { return v.VisitChangeVotePeriod(k) }

type ChangeBond struct {
	localKind
	Bond uint64 `json:"bond"`
}

func (k *ChangeBond) Type() KindType             { return KindChangeBond }
func (k *ChangeBond) ValidateBasic() error       { return nil }
func (k *ChangeBond) Accept(v KindVisitor) error { return v.VisitChangeBond(k) }

type ChangePolicy struct {
	localKind
	Policy Policy `json:"policy"`
}

func (k *ChangePolicy) Type() KindType             { return KindChangePolicy }
func (k *ChangePolicy) ValidateBasic() error       { return k.Policy.Validate() }
func (k *ChangePolicy) Accept(v KindVisitor) error { return v.VisitChangePolicy(k) }

type ChangePurpose struct {
	localKind
	Purpose string `json:"purpose"`
}

func (k *ChangePurpose) Type() KindType { return KindChangePurpose }

func (k *ChangePurpose) ValidateBasic() error {
	if k.Purpose == "" {
		return errors.Wrap(ErrInvalidKind, "ChangePurpose: empty purpose")
	}
	return nil
}

func (k *ChangePurpose) Accept(v KindVisitor) error { return v.VisitChangePurpose(k) }

type ChangeProtocolAddress struct {
	localKind
	Address string `json:"address"`
}

func (k *ChangeProtocolAddress) Type() KindType { return KindChangeProtocolAddress }

func (k *ChangeProtocolAddress) ValidateBasic() error {
	if k.Address == "" {
		return errors.Wrap(ErrInvalidKind, "ChangeProtocolAddress: empty address")
	}
	return nil
}

func (k *ChangeProtocolAddress) Accept(v KindVisitor) error { return v.VisitChangeProtocolAddress(k) }

type ResoluteMarket struct {
	delegatedKind
	MarketID        uint64   `json:"market_id"`
	PayoutNumerator []uint64 `json:"payout_numerator,omitempty"`
}

func (k *ResoluteMarket) Type() KindType             { return KindResoluteMarket }
func (k *ResoluteMarket) ValidateBasic() error       { return nil }
func (k *ResoluteMarket) Accept(v KindVisitor) error { return v.VisitResoluteMarket(k) }

type SetTokenWhitelist struct {
	delegatedKind
	Whitelist []AccountID `json:"whitelist"`
}

func (k *SetTokenWhitelist) Type() KindType { return KindSetTokenWhitelist }

func (k *SetTokenWhitelist) ValidateBasic() error {
	if len(k.Whitelist) == 0 {
		return errors.Wrap(ErrInvalidKind, "SetTokenWhitelist: empty whitelist")
	}
	for _, id := range k.Whitelist {
		if err := requireAccount(k.Type(), "token", id); err != nil {
			return err
		}
	}
	return nil
}

func (k *SetTokenWhitelist) Accept(v KindVisitor) error { return v.VisitSetTokenWhitelist(k) }

type AddTokenWhitelist struct {
	delegatedKind
	ToAdd AccountID `json:"to_add"`
}

func (k *AddTokenWhitelist) Type() KindType             { return KindAddTokenWhitelist }
func (k *AddTokenWhitelist) ValidateBasic() error       { return requireAccount(k.Type(), "to_add", k.ToAdd) }
func (k *AddTokenWhitelist) Accept(v KindVisitor) error { return v.VisitAddTokenWhitelist(k) }

type SetGov struct {
	delegatedKind
	NewGov AccountID `json:"new_gov"`
}

func (k *SetGov) Type() KindType             { return KindSetGov }
func (k *SetGov) ValidateBasic() error       { return requireAccount(k.Type(), "new_gov", k.NewGov) }
func (k *SetGov) Accept(v KindVisitor) error { return v.VisitSetGov(k) }

type Pause struct {
	delegatedKind
}

func (k *Pause) Type() KindType             { return KindPause }
func (k *Pause) ValidateBasic() error       { return nil }
func (k *Pause) Accept(v KindVisitor) error { return v.VisitPause(k) }

type Unpause struct {
	delegatedKind
}

func (k *Unpause) Type() KindType             { return KindUnpause }
func (k *Unpause) ValidateBasic() error       { return nil }
func (k *Unpause) Accept(v KindVisitor) error { return v.VisitUnpause(k) }

// NeedsGracePeriod reports whether an accepted proposal of this kind must wait
// out the grace period before its action is submitted. Pause and Unpause are
// urgent and go out immediately.
func NeedsGracePeriod(k ProposalKind) bool {
	if !k.Delegated() {
		return false
	}
	switch k.(type) {
	case *Pause, *Unpause:
		return false
	}
	return true
}

// KindAmount returns the amount the proposal moves, if any. It selects the
// policy tier.
func KindAmount(k ProposalKind) *uint64 {
	if p, ok := k.(*Payout); ok {
		amount := p.Amount
		return &amount
	}
	return nil
}

// KindSubject returns the account a proposal is about, if any.
func KindSubject(k ProposalKind) AccountID {
	switch x := k.(type) {
	case *NewCouncil:
		return x.Target
	case *RemoveCouncil:
		return x.Target
	case *Payout:
		return x.Target
	}
	return ""
}

func parseKindType(dat []byte) (KindType, error) {
	var k struct {
		Type KindType `json:"type"`
	}
	if err := json.Unmarshal(dat, &k); err != nil {
		return "", errors.Wrap(ErrInvalidKind, err.Error())
	}
	return k.Type, nil
}

func decodeKind[K any, PK interface {
	*K
	ProposalKind
}](dat []byte) (ProposalKind, error) {
	var k K
	if err := json.Unmarshal(dat, &k); err != nil {
		return nil, errors.Wrap(ErrInvalidKind, err.Error())
	}
	return PK(&k), nil
}

// DecodeKind decodes a kind from its tagged JSON form, {"type": "...", ...}.
func DecodeKind(dat []byte) (ProposalKind, error) {
	tp, err := parseKindType(dat)
	if err != nil {
		return nil, err
	}
	switch tp {
	case KindNewCouncil:
		return decodeKind[NewCouncil](dat)
	case KindRemoveCouncil:
		return decodeKind[RemoveCouncil](dat)
	case KindPayout:
		return decodeKind[Payout](dat)
	case KindChangeVotePeriod:
		return decodeKind[ChangeVotePeriod](dat)
	case KindChangeBond:
		return decodeKind[ChangeBond](dat)
	case KindChangePolicy:
		return decodeKind[ChangePolicy](dat)
	case KindChangePurpose:
		return decodeKind[ChangePurpose](dat)
	case KindChangeProtocolAddress:
		return decodeKind[ChangeProtocolAddress](dat)
	case KindResoluteMarket:
		return decodeKind[ResoluteMarket](dat)
	case KindSetTokenWhitelist:
		return decodeKind[SetTokenWhitelist](dat)
	case KindAddTokenWhitelist:
		return decodeKind[AddTokenWhitelist](dat)
	case KindSetGov:
		return decodeKind[SetGov](dat)
	case KindPause:
		return decodeKind[Pause](dat)
	case KindUnpause:
		return decodeKind[Unpause](dat)
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", tp)
}

// EncodeKind encodes a kind in its tagged JSON form.
func EncodeKind(k ProposalKind) ([]byte, error) {
	body, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err = json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(k.Type())
	return json.Marshal(fields)
}

// Kind wraps a ProposalKind so it can sit in JSON documents.
type Kind struct {
	ProposalKind
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k.ProposalKind == nil {
		return []byte("null"), nil
	}
	return EncodeKind(k.ProposalKind)
}

func (k *Kind) UnmarshalJSON(dat []byte) (err error) {
	k.ProposalKind, err = DecodeKind(dat)
	return
}
