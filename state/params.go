package state

import (
	"time"

	"github.com/calehh/fluxdao/types"
)

// Params are the governance parameters proposals can change.
type Params struct {
	Purpose          string          `json:"purpose"`
	Bond             uint64          `json:"bond"`
	CouncilBond      uint64          `json:"council_bond"`
	VotePeriod       time.Duration   `json:"vote_period"`
	GracePeriod      time.Duration   `json:"grace_period"`
	Policy           types.Policy    `json:"policy"`
	ExternalAddress  string          `json:"external_address"`
	SelfAddress      types.AccountID `json:"self_address"`
	CouncilOnly      bool            `json:"council_only"`
	SimpleResolution bool            `json:"simple_resolution"`
}

func ParamsFromGenesis(g *types.GenesisState) *Params {
	return &Params{
		Purpose:          g.Purpose,
		Bond:             g.Bond,
		CouncilBond:      g.CouncilBond,
		VotePeriod:       g.VotePeriod,
		GracePeriod:      g.GracePeriod,
		Policy:           g.Policy.Clone(),
		ExternalAddress:  g.ExternalAddress,
		SelfAddress:      g.SelfAddress,
		CouncilOnly:      g.CouncilOnly,
		SimpleResolution: g.SimpleResolution,
	}
}

func (p *Params) Clone() *Params {
	n := *p
	n.Policy = p.Policy.Clone()
	return &n
}

// MinDeposit is the bond a proposal of the given kind must carry.
func (p *Params) MinDeposit(kind types.ProposalKind) uint64 {
	if kind.Type() == types.KindNewCouncil {
		return p.CouncilBond
	}
	return p.Bond
}
