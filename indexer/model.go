package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

// Proposal ids start at zero, so the chain id lives in its own column.
type Proposal struct {
	Id             uint64 `gorm:"primary_key" json:"-"`
	ProposalID     uint64 `gorm:"unique_index" json:"id"`
	Proposer       string `gorm:"index" json:"proposer"`
	Kind           string `json:"kind"`
	Description    string `json:"description"`
	Bond           uint64 `json:"bond"`
	Status         string `gorm:"index" json:"status"`
	VotePeriodEnd  int64  `json:"vote_period_end"`
	VoteYes        uint64 `json:"vote_yes"`
	VoteNo         uint64 `json:"vote_no"`
	NewHeight      uint64 `json:"new_height"`
	SettleHeight   uint64 `json:"settle_height"`
	ExternalStatus string `json:"external_status,omitempty"`
}

type ProposalVote struct {
	Id         uint64 `gorm:"primary_key" json:"-"`
	ProposalID uint64 `gorm:"index" json:"proposal"`
	Voter      string `gorm:"index" json:"voter"`
	Vote       string `json:"vote"`
	Height     uint64 `json:"height"`
}

type CouncilMember struct {
	Id     uint64 `gorm:"primary_key" json:"-"`
	Member string `gorm:"unique_index" json:"member"`
	Active bool   `json:"active"`
	Height uint64 `json:"height"`
}

type Transfer struct {
	Id         uint64 `gorm:"primary_key" json:"-"`
	ProposalID uint64 `gorm:"index" json:"proposal"`
	From       string `gorm:"column:sender;index" json:"from,omitempty"`
	To         string `gorm:"column:recipient;index" json:"to,omitempty"`
	Amount     uint64 `json:"amount"`
	Reason     string `json:"reason"`
	Height     uint64 `json:"height"`
}

const (
	ExternalSubmitted = "submitted"
	ExternalSucceeded = "succeeded"
	ExternalFailed    = "failed"
)
