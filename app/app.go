package app

import (
	"context"

	"github.com/calehh/fluxdao/config"
	"github.com/calehh/fluxdao/crypto"
	"github.com/calehh/fluxdao/external"
	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/tx/handler"
	"github.com/calehh/fluxdao/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/store"
	"github.com/ethereum/go-ethereum/common"
)

type finalizeBlock struct {
	Height uint64
	Hash   common.Hash
}

func (b *finalizeBlock) Set(blk *abcitypes.RequestFinalizeBlock) {
	b.Height = uint64(blk.Height)
	b.Hash = common.BytesToHash(blk.Hash)
}

var _ abcitypes.Application = &FluxApp{}

// FluxApp runs the governance engine as a CometBFT application. The node
// whose key matches the self address of the genesis also releases the
// outbox of every committed block and reports external outcomes back to the
// chain.
type FluxApp struct {
	cfg    *config.AppConfig
	logger cmtlog.Logger

	db         *state.StateDB
	lastBlk    finalizeBlock
	txHdlrs    map[tx.FluxTxType]handler.TxHandler
	queriers   map[string]Querier
	dispatcher *external.Dispatcher
	pv         *crypto.PV

	st *state.State
}

func NewFluxApp(cfg *config.AppConfig, pv *crypto.PV, logger cmtlog.Logger) (app *FluxApp, err error) {
	db, err := state.NewStateDB(cfg.DataDir(), logger)
	if err != nil {
		return nil, err
	}
	var client external.Client = external.NewMockClient()
	if cfg.ExternalURL != "" {
		if client, err = external.NewCEClient(cfg.ExternalURL, logger); err != nil {
			return nil, err
		}
	}
	var transferer external.Transferer = external.NewLogTransferer(logger)
	if cfg.BankURL != "" {
		if transferer, err = external.NewCETransferer(cfg.BankURL, logger); err != nil {
			return nil, err
		}
	}
	dispatcher := external.NewDispatcher(client, transferer, cfg.DispatchRetries, cfg.DispatchInterval, logger)
	return newFluxApp(cfg, db, dispatcher, pv, logger), nil
}

func newFluxApp(cfg *config.AppConfig, db *state.StateDB, dispatcher *external.Dispatcher, pv *crypto.PV, logger cmtlog.Logger) *FluxApp {
	app := &FluxApp{
		cfg:        cfg,
		logger:     logger.With("module", "app"),
		db:         db,
		queriers:   make(map[string]Querier),
		dispatcher: dispatcher,
		pv:         pv,
	}
	app.txHdlrs = handler.Handlers(logger)
	app.registerQuerier()
	return app
}

// Start restores the last block and runs the dispatcher until ctx is done.
// Actions that were in flight when the node stopped are handed out again.
func (app *FluxApp) Start(ctx context.Context, bs *store.BlockStore) error {
	height := app.db.Header().Height
	if height > 0 && bs != nil {
		blk := bs.LoadBlock(int64(height))
		if blk == nil {
			panic("unexpected BlockStore")
		}
		app.lastBlk.Height = height
		app.lastBlk.Hash = common.BytesToHash(blk.Hash())
	}
	// Before InitChain the params are empty and no node is the engine
	// identity; the dispatcher runs anyway and stays idle until Commit
	// hands it work.
	if app.isSelf() {
		actions, err := app.db.GetPendingActions()
		if err != nil {
			return err
		}
		if len(actions) > 0 {
			app.logger.Info("resubmit pending external actions", "count", len(actions))
			app.dispatcher.Dispatch(nil, actions)
		}
	}
	go app.dispatcher.Start(ctx)
	return nil
}

func (app *FluxApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("flux app stopped")
}

// isSelf reports whether this node signs as the engine identity.
func (app *FluxApp) isSelf() bool {
	if app.pv == nil {
		return false
	}
	params, _ := app.db.GetParams()
	return params.SelfAddress != "" && params.SelfAddress == app.pv.Address()
}

func (app *FluxApp) registerQuerier() {
	app.queriers["/proposal/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalsQuerier(app.db, app.logger)
	app.queriers["/council/"] = NewCouncilQuerier(app.db, app.logger)
	app.queriers["/params/"] = NewParamsQuerier(app.db, app.logger)
	app.queriers["/count/"] = NewCountQuerier(app.db, app.logger)
	app.queriers["/nonce/"] = NewNonceQuerier(app.db, app.logger)
}

func (app *FluxApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	g, err := types.DecodeGenesisState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain decode app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	st.SetBlockTime(chain.Time)
	if err = st.InitGenesis(g); err != nil {
		app.logger.Error("InitChain genesis fail", "err", err)
		return nil, err
	}
	if _, err = app.db.Update(st); err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.logger.Info("InitChain", "chainId", chain.ChainId, "council", len(g.Council), "self", g.SelfAddress)
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *FluxApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *FluxApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *FluxApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *FluxApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *FluxApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *FluxApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *FluxApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
