package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type VoteTxHandler struct {
	logger cmtlog.Logger
}

func NewVoteTxHandler(logger cmtlog.Logger) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
	}
	return
}

func (h *VoteTxHandler) apply(st *state.State, btx *tx.FluxTx, now time.Time) error {
	vtx, err := body[tx.VoteTx](btx)
	if err != nil {
		return err
	}
	return st.Vote(btx.Caller(), vtx.Proposal, vtx.Vote, now)
}

func (h *VoteTxHandler) Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	return check(h.logger, h.apply, st, btx, now)
}

func (h *VoteTxHandler) Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	return process(h.logger, h.apply, st, btx, now)
}
