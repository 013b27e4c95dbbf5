package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// ConfirmTxHandler carries the external system's answer into the state. The
// node signs these txs itself.
type ConfirmTxHandler struct {
	logger cmtlog.Logger
}

func NewConfirmTxHandler(logger cmtlog.Logger) (h *ConfirmTxHandler) {
	logger = logger.With("module", "confirmTx")
	h = &ConfirmTxHandler{
		logger: logger,
	}
	return
}

func (h *ConfirmTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	ctx, err := body[tx.ConfirmTx](btx)
	if err != nil {
		return err
	}
	return st.OnExternalConfirmation(btx.Caller(), ctx.Proposal, ctx.Succeeded, now)
}

func (h *ConfirmTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *ConfirmTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}
