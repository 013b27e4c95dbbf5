package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ExitTxHandler struct {
	logger cmtlog.Logger
}

func NewExitTxHandler(logger cmtlog.Logger) (h *ExitTxHandler) {
	logger = logger.With("module", "exitTx")
	h = &ExitTxHandler{
		logger: logger,
	}
	return
}

func (h *ExitTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	if _, err := body[tx.ExitTx](btx); err != nil {
		return err
	}
	return st.Exit(btx.Caller(), now)
}

func (h *ExitTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *ExitTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}
