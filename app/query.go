package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx/handler"
	"github.com/calehh/fluxdao/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const CodePathNotFound uint32 = 404

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

func (app *FluxApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = CodePathNotFound
		return
	}
	res, err = q.Query(ctx, req)
	return
}

// EncodeProposalID is the query data of /proposal/.
func EncodeProposalID(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

// decodeProposalID accepts 1 to 8 big-endian bytes; shorter forms are
// left-padded.
func decodeProposalID(dat []byte) (id uint64, ok bool) {
	if len(dat) == 0 || len(dat) > 8 {
		return 0, false
	}
	var buf [8]byte
	copy(buf[8-len(dat):], dat)
	return binary.BigEndian.Uint64(buf[:]), true
}

func queryFail(res *abcitypes.ResponseQuery, err error) {
	res.Code = handler.ErrorCode(err)
	res.Log = err.Error()
}

type ProposalQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(db *state.StateDB, logger cmtlog.Logger) *ProposalQuerier {
	return &ProposalQuerier{db: db, logger: logger}
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	id, ok := decodeProposalID(req.Data)
	if !ok {
		res.Code = handler.CodeInvalidTx
		res.Log = "proposal id must be 1 to 8 big-endian bytes"
		return
	}
	p, height, err := q.db.GetProposal(id)
	res.Height = int64(height)
	if err != nil {
		queryFail(res, err)
		return res, nil
	}
	res.Value, err = json.Marshal(p)
	return
}

// ProposalsRequest is the query data of /proposals/.
type ProposalsRequest struct {
	From  uint64 `json:"from"`
	Limit uint64 `json:"limit"`
}

type ProposalsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalsQuerier(db *state.StateDB, logger cmtlog.Logger) *ProposalsQuerier {
	return &ProposalsQuerier{db: db, logger: logger}
}

func (q *ProposalsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	preq := ProposalsRequest{Limit: DefaultQueryLimit}
	if len(req.Data) > 0 {
		if err = json.Unmarshal(req.Data, &preq); err != nil {
			res.Code = handler.CodeInvalidTx
			res.Log = err.Error()
			return res, nil
		}
	}
	if preq.Limit > MaxQueryLimit {
		preq.Limit = MaxQueryLimit
	}
	ps, height, err := q.db.GetProposals(preq.From, preq.Limit)
	res.Height = int64(height)
	if err != nil {
		q.logger.Error("query proposals fail", "from", preq.From, "err", err)
		queryFail(res, err)
		return res, nil
	}
	res.Value, err = json.Marshal(ps)
	return
}

type CouncilQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewCouncilQuerier(db *state.StateDB, logger cmtlog.Logger) *CouncilQuerier {
	return &CouncilQuerier{db: db, logger: logger}
}

func (q *CouncilQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	council, height := q.db.GetCouncil()
	res.Height = int64(height)
	res.Value, err = json.Marshal(council)
	return
}

type ParamsQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewParamsQuerier(db *state.StateDB, logger cmtlog.Logger) *ParamsQuerier {
	return &ParamsQuerier{db: db, logger: logger}
}

func (q *ParamsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	params, height := q.db.GetParams()
	res.Height = int64(height)
	res.Value, err = json.Marshal(params)
	return
}

type CountQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewCountQuerier(db *state.StateDB, logger cmtlog.Logger) *CountQuerier {
	return &CountQuerier{db: db, logger: logger}
}

func (q *CountQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	count, height := q.db.GetProposalCount()
	res.Height = int64(height)
	res.Value, err = json.Marshal(count)
	return
}

// NonceQuerier answers the next nonce of the account given as query data.
type NonceQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewNonceQuerier(db *state.StateDB, logger cmtlog.Logger) *NonceQuerier {
	return &NonceQuerier{db: db, logger: logger}
}

func (q *NonceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	nonce, err := q.db.GetNonce(types.AccountID(req.Data))
	if err != nil {
		queryFail(res, err)
		return res, nil
	}
	res.Height = int64(q.db.Header().Height)
	res.Value, err = json.Marshal(nonce)
	return
}
