package handler

import (
	"context"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

type TxHandler interface {
	// Check runs the tx against a copy of st.
	Check(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error)
	// Process consumes the sender nonce and applies the tx to st. A governance
	// error is reported in the result code; err is reserved for storage faults.
	Process(ctx context.Context, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error)
}

const (
	CodeOK uint32 = iota
	CodeInternal
	CodeInvalidTx
	CodeValidation
	CodeUnauthorized
	CodeNotFound
	CodeAlreadyFinalized
	CodeAlreadyVoted
	CodeGracePeriodActive
	CodeVotingActive
	CodeNotInCouncil
	CodeInsufficientBond
	CodeNotResolved
	CodeNonceInvalid
	CodeSigInvalid
	CodeUnsupportedTx
)

var errorCodes = []struct {
	err  error
	code uint32
}{
	{state.ErrValidation, CodeValidation},
	{state.ErrUnauthorized, CodeUnauthorized},
	{state.ErrNotFound, CodeNotFound},
	{state.ErrAlreadyFinalized, CodeAlreadyFinalized},
	{state.ErrAlreadyVoted, CodeAlreadyVoted},
	{state.ErrGracePeriodActive, CodeGracePeriodActive},
	{state.ErrVotingActive, CodeVotingActive},
	{state.ErrNotInCouncil, CodeNotInCouncil},
	{state.ErrInsufficientBond, CodeInsufficientBond},
	{state.ErrNotResolved, CodeNotResolved},
	{state.ErrNonceInvalid, CodeNonceInvalid},
	{state.ErrSigInvalid, CodeSigInvalid},
	{tx.ErrInvalidTx, CodeInvalidTx},
	{tx.ErrUnsupportedTxVersion, CodeInvalidTx},
	{tx.ErrUnsupportedTxType, CodeUnsupportedTx},
}

// ErrorCode maps an error to the code reported to clients.
func ErrorCode(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}

type applyFunc func(st *state.State, btx *tx.FluxTx, now time.Time) error

func check(logger cmtlog.Logger, apply applyFunc, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: CodeOK}
	if err1 := apply(st.Clone(), btx, now); err1 != nil {
		logger.Info("CheckTx fail", "type", btx.Type, "err", err1)
		res.Code = ErrorCode(err1)
		res.Log = err1.Error()
	}
	return
}

func process(logger cmtlog.Logger, apply applyFunc, st *state.State, btx *tx.FluxTx, now time.Time) (res *abcitypes.ExecTxResult, err error) {
	if err = st.IncNonce(btx.Caller()); err != nil {
		return nil, err
	}
	res = &abcitypes.ExecTxResult{Code: CodeOK}
	if err1 := apply(st, btx, now); err1 != nil {
		logger.Info("process tx fail", "type", btx.Type, "caller", btx.Caller(), "err", err1)
		res.Code = ErrorCode(err1)
		res.Log = err1.Error()
		return
	}
	res.Events = st.Events()
	return
}

func body[T any](btx *tx.FluxTx) (*T, error) {
	b, ok := btx.Tx.(*T)
	if !ok {
		return nil, errors.Wrapf(tx.ErrInvalidTx, "unexpected body %T for %s", btx.Tx, btx.Type)
	}
	return b, nil
}

// Handlers returns the handler of every tx type.
func Handlers(logger cmtlog.Logger) map[tx.FluxTxType]TxHandler {
	return map[tx.FluxTxType]TxHandler{
		tx.FluxTxTypePropose:          NewProposalTxHandler(logger),
		tx.FluxTxTypeVote:             NewVoteTxHandler(logger),
		tx.FluxTxTypeFinalize:         NewSettleTxHandler(logger),
		tx.FluxTxTypeFinalizeExternal: NewSettleExternalTxHandler(logger),
		tx.FluxTxTypeExit:             NewExitTxHandler(logger),
		tx.FluxTxTypeConfirm:          NewConfirmTxHandler(logger),
	}
}
