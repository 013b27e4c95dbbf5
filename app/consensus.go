package app

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/tx/handler"
	"github.com/calehh/fluxdao/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/pkg/errors"
)

var ErrNoBlockState = errors.New("commit without a finalized block")

func (app *FluxApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.FluxTx, err error) {
	btx, err = tx.UnmarshalFluxTx(txDat)
	if err != nil {
		return
	}
	err = st.Verify(btx, allowNonceGap)
	return
}

func (app *FluxApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: handler.CodeOK}
	st := app.db.State()
	btx, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Error("parse tx fail", "err", err)
		res.Code = handler.ErrorCode(err)
		res.Log = err.Error()
		err = nil
		return
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		app.logger.Error("unsupported tx", "type", btx.Type)
		res.Code = handler.CodeUnsupportedTx
		res.Log = "unsupported tx"
		return
	}
	res, err = h.Check(ctx, st, btx, time.Now())
	if err != nil {
		app.logger.Error("check tx fail", "err", err)
		res = &abcitypes.ResponseCheckTx{Code: handler.CodeInternal, Log: err.Error()}
		err = nil
	}
	return
}

// deliverTx executes one tx of a block on st. A tx that cannot be decoded or
// verified gets a failure code and consumes no nonce.
func (app *FluxApp) deliverTx(ctx context.Context, st *state.State, txDat []byte) (*abcitypes.ExecTxResult, error) {
	btx, err := app.parseTx(st, txDat, false)
	if err != nil {
		return &abcitypes.ExecTxResult{Code: handler.ErrorCode(err), Log: err.Error()}, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return &abcitypes.ExecTxResult{Code: handler.CodeUnsupportedTx, Log: "unsupported tx"}, nil
	}
	return h.Process(ctx, st, btx, st.Header().BlockTime())
}

// confirmTxs turns the outcomes collected by the dispatcher into confirm
// txs signed by the node key. Outcomes of proposals no longer waiting are
// skipped.
func (app *FluxApp) confirmTxs(st *state.State) [][]byte {
	confirmations := app.dispatcher.Confirmations()
	if len(confirmations) == 0 {
		return nil
	}
	nonce, err := st.Nonce(app.pv.Address())
	if err != nil {
		app.logger.Error("read self nonce fail", "err", err)
		return nil
	}
	txs := make([][]byte, 0, len(confirmations))
	for _, c := range confirmations {
		p, err := st.Proposal(c.ProposalID)
		if err != nil || p.External == nil || !p.External.Pending {
			continue
		}
		btx := tx.NewFluxTx(tx.FluxTxTypeConfirm, nonce, app.pv.PubKey(), &tx.ConfirmTx{Proposal: c.ProposalID, Succeeded: c.Succeeded})
		if err = app.pv.SignTx(btx, st.Header().ChainId); err != nil {
			app.logger.Error("sign confirm tx fail", "proposal", c.ProposalID, "err", err)
			continue
		}
		dat, err := tx.MarshalFluxTx(btx)
		if err != nil {
			app.logger.Error("encode confirm tx fail", "proposal", c.ProposalID, "err", err)
			continue
		}
		txs = append(txs, dat)
		nonce++
	}
	return txs
}

func (app *FluxApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	st := app.db.NewState()
	st.SetBlockTime(proposal.Time)
	candidates := proposal.Txs
	if app.isSelf() {
		candidates = append(app.confirmTxs(st), candidates...)
	}
	txs := make([][]byte, 0, len(candidates))
	var size int64
	for _, stx := range candidates {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		stTmp := st.Clone()
		result, err := app.deliverTx(ctx, stTmp, stx)
		if err != nil {
			app.logger.Error("prepare tx fail", "err", err)
			continue
		}
		if result.Code != handler.CodeOK {
			app.logger.Info("prepare tx dropped", "code", result.Code, "log", result.Log)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(txs), "dropped", len(candidates)-len(txs))
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal only refuses blocks carrying undecodable txs. Txs failing
// governance checks are kept and answered with a failure code.
func (app *FluxApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}
	for _, stx := range proposal.Txs {
		if _, err := tx.UnmarshalFluxTx(stx); err != nil {
			app.logger.Error("ProcessProposal reject", "height", proposal.Height, "err", err)
			res.Status = abcitypes.ResponseProcessProposal_REJECT
			return res, nil
		}
	}
	return res, nil
}

func (app *FluxApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	app.lastBlk.Set(req)
	st := app.db.NewState()
	st.SetBlockTime(req.Time)
	res := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		result, err := app.deliverTx(ctx, st, stx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "height", req.Height, "index", i, "err", err)
			return nil, err
		}
		res[i] = result
	}
	h, err := app.db.Update(st)
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs), "appHash", h)
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
	}, nil
}

// Commit persists the finalized block and releases its outbox.
func (app *FluxApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	st := app.st
	if st == nil {
		return nil, ErrNoBlockState
	}
	if _, err := app.db.SetState(st); err != nil {
		return nil, err
	}
	app.st = nil
	if app.isSelf() {
		out := st.Outbox()
		app.dispatcher.Dispatch(out.BankTransfers(), out.Actions)
		app.dispatcher.Prune(func(c types.Confirmation) bool {
			p, err := st.Proposal(c.ProposalID)
			return err != nil || p.External == nil || !p.External.Pending
		})
	}
	app.logger.Info("Commit", "height", app.lastBlk.Height)
	return &abcitypes.ResponseCommit{}, nil
}
