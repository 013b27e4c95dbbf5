package indexer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/calehh/fluxdao/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"
)

// ChainClient is the part of the CometBFT RPC the indexer reads.
type ChainClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error)
}

var _ ChainClient = &comethttp.HTTP{}

// ChainIndexer follows committed blocks and keeps a queryable copy of
// proposals, votes, council changes and transfers in sqlite.
type ChainIndexer struct {
	logger        cmtlog.Logger
	Height        int64
	db            *gorm.DB
	cli           ChainClient
	interval      time.Duration
	eventHandlers map[string]eventHandler
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	return newChainIndexer(logger, dbPath, cli)
}

func newChainIndexer(logger cmtlog.Logger, dbPath string, cli ChainClient) (*ChainIndexer, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Height{}, &Proposal{}, &ProposalVote{}, &CouncilMember{}, &Transfer{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err = db.First(&h).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, err
	}

	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		db:       db,
		cli:      cli,
		interval: time.Second,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalType:             c.handleEventProposal,
		types.EventVoteType:                 c.handleEventVote,
		types.EventProposalStatusType:       c.handleEventProposalStatus,
		types.EventCouncilType:              c.handleEventCouncil,
		types.EventTransferType:             c.handleEventTransfer,
		types.EventExternalActionType:       c.handleEventExternalAction,
		types.EventExternalConfirmationType: c.handleEventExternalConfirmation,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(tx *gorm.DB, event abci.Event, height int64) error

func (c *ChainIndexer) handleEvent(tx *gorm.DB, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(tx, event, height)
	}
	return nil
}

func findProposal(tx *gorm.DB, id uint64) (*Proposal, error) {
	var p Proposal
	if err := tx.Where("proposal_id = ?", id).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "indexed proposal %d", id)
	}
	return &p, nil
}

func (c *ChainIndexer) handleEventProposal(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposal(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	return tx.Create(&Proposal{
		ProposalID:    ev.ProposalID,
		Proposer:      string(ev.Proposer),
		Kind:          string(ev.Kind),
		Description:   ev.Description,
		Bond:          ev.Bond,
		Status:        types.ProposalStatusVoting.String(),
		VotePeriodEnd: ev.VotePeriodEnd.Unix(),
		NewHeight:     uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventVote(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventVote(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	vote := ProposalVote{
		ProposalID: ev.ProposalID,
		Voter:      string(ev.Voter),
		Vote:       ev.Vote.String(),
		Height:     uint64(height),
	}
	if err := tx.Create(&vote).Error; err != nil {
		return err
	}
	p, err := findProposal(tx, ev.ProposalID)
	if err != nil {
		return err
	}
	return tx.Model(p).Updates(map[string]interface{}{"vote_yes": ev.VoteYes, "vote_no": ev.VoteNo}).Error
}

func (c *ChainIndexer) handleEventProposalStatus(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalStatus(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	p, err := findProposal(tx, ev.ProposalID)
	if err != nil {
		return err
	}
	fields := map[string]interface{}{"status": ev.Status.String()}
	if ev.Status.IsFinalized() {
		fields["settle_height"] = uint64(height)
	}
	return tx.Model(p).Updates(fields).Error
}

func (c *ChainIndexer) handleEventCouncil(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventCouncil(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	return saveMember(tx, string(ev.Member), ev.Action == types.CouncilActionAdd, uint64(height))
}

func saveMember(tx *gorm.DB, member string, active bool, height uint64) error {
	var m CouncilMember
	err := tx.Where("member = ?", member).First(&m).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}
	m.Member = member
	m.Active = active
	m.Height = height
	return tx.Save(&m).Error
}

func (c *ChainIndexer) handleEventTransfer(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventTransfer(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	return tx.Create(&Transfer{
		ProposalID: ev.ProposalID,
		From:       string(ev.From),
		To:         string(ev.To),
		Amount:     ev.Amount,
		Reason:     ev.Reason,
		Height:     uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventExternalAction(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventExternalAction(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	p, err := findProposal(tx, ev.ProposalID)
	if err != nil {
		return err
	}
	return tx.Model(p).Update("external_status", ExternalSubmitted).Error
}

func (c *ChainIndexer) handleEventExternalConfirmation(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventExternalConfirmation(event)
	if ev == nil {
		return errors.Errorf("decode %s event fail", event.Type)
	}
	p, err := findProposal(tx, ev.ProposalID)
	if err != nil {
		return err
	}
	status := ExternalFailed
	if ev.Succeeded {
		status = ExternalSucceeded
	}
	return tx.Model(p).Update("external_status", status).Error
}

// syncCouncil seeds the member table with the genesis council, which no
// event announces.
func (c *ChainIndexer) syncCouncil(ctx context.Context) error {
	res, err := c.cli.ABCIQuery(ctx, "/council/", nil)
	if err != nil {
		return err
	}
	if res.Response.Code != 0 {
		return errors.Errorf("query council: code %d %s", res.Response.Code, res.Response.Log)
	}
	var council []types.AccountID
	if err = json.Unmarshal(res.Response.Value, &council); err != nil {
		return err
	}
	for _, m := range council {
		var member CouncilMember
		err = c.db.Where("member = ?", string(m)).First(&member).Error
		if err == nil {
			continue
		}
		if !gorm.IsRecordNotFoundError(err) {
			return err
		}
		if err = saveMember(c.db, string(m), true, uint64(res.Response.Height)); err != nil {
			return err
		}
	}
	return nil
}

// indexBlock stores the events of one block and advances the saved height
// in a single sqlite transaction.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) error {
	results, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return err
	}
	tx := c.db.Begin()
	if err = tx.Error; err != nil {
		return err
	}
	for _, res := range results.TxsResults {
		if res.Code != 0 {
			continue
		}
		for _, event := range res.Events {
			if err = c.handleEvent(tx, event, height); err != nil {
				tx.Rollback()
				return errors.Wrapf(err, "height %d", height)
			}
		}
	}
	if err = tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// Sync indexes every committed block not indexed yet.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	status, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for status.SyncInfo.LatestBlockHeight >= c.Height {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = c.indexBlock(ctx, c.Height); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	councilSynced := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !councilSynced {
				if err := c.syncCouncil(ctx); err != nil {
					c.logger.Error("sync council fail", "err", err)
					continue
				}
				councilSynced = true
			}
			if err := c.Sync(ctx); err != nil {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getProposals(status string, proposer string, page int, pageSize int) ([]Proposal, uint64, error) {
	query := c.db.Model(&Proposal{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if proposer != "" {
		query = query.Where("proposer = ?", proposer)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := query.Order("proposal_id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (*Proposal, error) {
	return findProposal(c.db, proposalId)
}

func (c *ChainIndexer) getVotes(proposal *uint64, voter string, page int, pageSize int) ([]ProposalVote, uint64, error) {
	query := c.db.Model(&ProposalVote{})
	if proposal != nil {
		query = query.Where("proposal_id = ?", *proposal)
	}
	if voter != "" {
		query = query.Where("voter = ?", voter)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var votes []ProposalVote
	err := query.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

func (c *ChainIndexer) getCouncil() ([]CouncilMember, error) {
	var members []CouncilMember
	if err := c.db.Where("active = ?", true).Order("member asc").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (c *ChainIndexer) getTransfers(proposal *uint64, to string, page int, pageSize int) ([]Transfer, uint64, error) {
	query := c.db.Model(&Transfer{})
	if proposal != nil {
		query = query.Where("proposal_id = ?", *proposal)
	}
	if to != "" {
		query = query.Where("recipient = ?", to)
	}
	var total uint64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var transfers []Transfer
	err := query.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&transfers).Error
	if err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}
