package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// SettleTxHandler finalizes a proposal of any kind.
type SettleTxHandler struct {
	logger cmtlog.Logger
}

func NewSettleTxHandler(logger cmtlog.Logger) (h *SettleTxHandler) {
	logger = logger.With("module", "finalizeTx")
	h = &SettleTxHandler{
		logger: logger,
	}
	return
}

func (h *SettleTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	ftx, err := body[tx.FinalizeTx](btx)
	if err != nil {
		return err
	}
	return st.Finalize(btx.Caller(), ftx.Proposal, now)
}

func (h *SettleTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *SettleTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}

// SettleExternalTxHandler submits an accepted delegated proposal.
type SettleExternalTxHandler struct {
	logger cmtlog.Logger
}

func NewSettleExternalTxHandler(logger cmtlog.Logger) (h *SettleExternalTxHandler) {
	logger = logger.With("module", "finalizeExternalTx")
	h = &SettleExternalTxHandler{
		logger: logger,
	}
	return
}

func (h *SettleExternalTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	ftx, err := body[tx.FinalizeExternalTx](btx)
	if err != nil {
		return err
	}
	return st.FinalizeExternal(btx.Caller(), ftx.Proposal, now)
}

func (h *SettleExternalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *SettleExternalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}
