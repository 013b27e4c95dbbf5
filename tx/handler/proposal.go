package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type ProposalTxHandler struct {
	logger cmtlog.Logger
}

func NewProposalTxHandler(logger cmtlog.Logger) (h *ProposalTxHandler) {
	logger = logger.With("module", "proposeTx")
	h = &ProposalTxHandler{
		logger: logger,
	}
	return
}

func (h *ProposalTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	ptx, err := body[tx.ProposeTx](btx)
	if err != nil {
		return err
	}
	id, err := st.AddProposal(btx.Caller(), ptx.Input(), ptx.Deposit, now)
	if err != nil {
		return err
	}
	h.logger.Debug("proposal added", "proposal", id, "kind", ptx.Kind.Type())
	return nil
}

func (h *ProposalTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *ProposalTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}
