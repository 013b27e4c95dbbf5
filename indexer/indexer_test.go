package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/calehh/fluxdao/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type fakeChain struct {
	council []types.AccountID
	blocks  map[int64][]*abci.ExecTxResult
	latest  int64
}

func (f *fakeChain) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: f.latest}}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	if *height > f.latest {
		return nil, errors.Errorf("height %d not committed", *height)
	}
	return &coretypes.ResultBlockResults{Height: *height, TxsResults: f.blocks[*height]}, nil
}

func (f *fakeChain) ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	if path != "/council/" {
		return nil, errors.Errorf("unexpected path %s", path)
	}
	value, err := json.Marshal(f.council)
	if err != nil {
		return nil, err
	}
	return &coretypes.ResultABCIQuery{Response: abci.ResponseQuery{Value: value, Height: 1}}, nil
}

func ok(events ...abci.Event) *abci.ExecTxResult {
	return &abci.ExecTxResult{Events: events}
}

func newTestChain() *fakeChain {
	end := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	return &fakeChain{
		council: []types.AccountID{"ALICE", "BOB"},
		latest:  4,
		blocks: map[int64][]*abci.ExecTxResult{
			1: {
				ok(types.EncodeEventProposal(&types.EventProposal{ProposalID: 0, Proposer: "CAROL", Kind: types.KindNewCouncil, Bond: 10, VotePeriodEnd: end, Description: "add carol"})),
				ok(types.EncodeEventProposal(&types.EventProposal{ProposalID: 1, Proposer: "ALICE", Kind: types.KindResoluteMarket, Bond: 10, VotePeriodEnd: end, Description: "resolve"})),
			},
			2: {
				ok(types.EncodeEventVote(&types.EventVote{ProposalID: 0, Voter: "ALICE", Vote: types.VoteYes, VoteYes: 1})),
				// failed txs carry no state change
				{Code: 5, Events: []abci.Event{types.EncodeEventVote(&types.EventVote{ProposalID: 0, Voter: "MALLORY", Vote: types.VoteNo, VoteNo: 1})}},
				ok(types.EncodeEventVote(&types.EventVote{ProposalID: 1, Voter: "ALICE", Vote: types.VoteYes, VoteYes: 1})),
			},
			3: {
				ok(
					types.EncodeEventVote(&types.EventVote{ProposalID: 0, Voter: "BOB", Vote: types.VoteYes, VoteYes: 2}),
					types.EncodeEventCouncil(&types.EventCouncil{Member: "CAROL", Action: types.CouncilActionAdd}),
					types.EncodeEventTransfer(&types.Transfer{ProposalID: 0, To: "CAROL", Amount: 10, Reason: "bond refund"}),
					types.EncodeEventProposalStatus(&types.EventProposalStatus{ProposalID: 0, Status: types.ProposalStatusFinalized}),
				),
				ok(
					types.EncodeEventVote(&types.EventVote{ProposalID: 1, Voter: "BOB", Vote: types.VoteYes, VoteYes: 2}),
					types.EncodeEventExternalAction(&types.ExternalAction{ProposalID: 1, Target: "market.flux", Kind: &types.ResoluteMarket{MarketID: 7}}),
				),
			},
			4: {
				ok(
					types.EncodeEventCouncil(&types.EventCouncil{Member: "BOB", Action: types.CouncilActionRemove}),
					types.EncodeEventExternalConfirmation(&types.Confirmation{ProposalID: 1, Succeeded: true}),
					types.EncodeEventProposalStatus(&types.EventProposalStatus{ProposalID: 1, Status: types.ProposalStatusFinalized}),
				),
			},
		},
	}
}

func newTestIndexer(t *testing.T, chain *fakeChain) *ChainIndexer {
	t.Helper()
	c, err := newChainIndexer(cmtlog.NewNopLogger(), filepath.Join(t.TempDir(), "indexer.db"), chain)
	if err != nil {
		t.Fatalf("new indexer: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSync(t *testing.T) {
	chain := newTestChain()
	c := newTestIndexer(t, chain)
	ctx := context.Background()
	if err := c.syncCouncil(ctx); err != nil {
		t.Fatalf("sync council: %v", err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if c.Height != 5 {
		t.Fatalf("got height %d, want 5", c.Height)
	}

	p, err := c.getProposalById(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "Finalized" || p.VoteYes != 2 || p.VoteNo != 0 || p.SettleHeight != 3 || p.NewHeight != 1 {
		t.Fatalf("unexpected proposal %+v", p)
	}
	market, err := c.getProposalById(1)
	if err != nil {
		t.Fatal(err)
	}
	if market.ExternalStatus != ExternalSucceeded || market.Kind != "ResoluteMarket" || market.SettleHeight != 4 {
		t.Fatalf("unexpected market proposal %+v", market)
	}

	votes, total, err := c.getVotes(nil, "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(votes) != 4 {
		t.Fatalf("got %d votes, want 4", total)
	}

	council, err := c.getCouncil()
	if err != nil {
		t.Fatal(err)
	}
	var members []string
	for _, m := range council {
		members = append(members, m.Member)
	}
	if len(members) != 2 || members[0] != "ALICE" || members[1] != "CAROL" {
		t.Fatalf("got council %v, want [ALICE CAROL]", members)
	}

	transfers, _, err := c.getTransfers(nil, "CAROL", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 || transfers[0].Amount != 10 {
		t.Fatalf("unexpected transfers %+v", transfers)
	}
}

func TestSyncResumes(t *testing.T) {
	chain := newTestChain()
	dbPath := filepath.Join(t.TempDir(), "indexer.db")
	chain.latest = 2
	c, err := newChainIndexer(cmtlog.NewNopLogger(), dbPath, chain)
	if err != nil {
		t.Fatal(err)
	}
	if err = c.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Close()

	chain.latest = 4
	c, err = newChainIndexer(cmtlog.NewNopLogger(), dbPath, chain)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Height != 3 {
		t.Fatalf("got height %d, want 3", c.Height)
	}
	if err = c.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	// votes from block 2 are not indexed twice
	_, total, err := c.getVotes(nil, "ALICE", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("got %d votes by ALICE, want 2", total)
	}
}

func TestSyncRollsBackBadBlock(t *testing.T) {
	chain := newTestChain()
	chain.blocks[2] = append(chain.blocks[2], ok(types.EncodeEventVote(&types.EventVote{ProposalID: 9, Voter: "ALICE", Vote: types.VoteYes})))
	c := newTestIndexer(t, chain)
	if err := c.Sync(context.Background()); err == nil {
		t.Fatalf("vote on an unknown proposal indexed")
	}
	if c.Height != 2 {
		t.Fatalf("got height %d, want 2", c.Height)
	}
	_, total, err := c.getVotes(nil, "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("got %d votes after rollback, want 0", total)
	}
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	dat, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(dat))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := newTestIndexer(t, newTestChain())
	ctx := context.Background()
	if err := c.syncCouncil(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	h := NewService("127.0.0.1:0", c).Handler()

	w := post(t, h, "/getProposals", GetProposalsReq{Status: "Finalized"})
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}
	var proposals GetProposalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &proposals); err != nil {
		t.Fatal(err)
	}
	if proposals.Total != 2 || len(proposals.Proposals) != 2 {
		t.Fatalf("got %d proposals, want 2", proposals.Total)
	}
	// newest first
	if proposals.Proposals[0].Proposal.ProposalID != 1 || len(proposals.Proposals[0].Votes) != 2 {
		t.Fatalf("unexpected first proposal %+v", proposals.Proposals[0])
	}

	zero := uint64(0)
	w = post(t, h, "/getProposals", GetProposalsReq{ProposalId: &zero})
	if err := json.Unmarshal(w.Body.Bytes(), &proposals); err != nil {
		t.Fatal(err)
	}
	if len(proposals.Proposals) != 1 || proposals.Proposals[0].Proposal.Proposer != "CAROL" {
		t.Fatalf("unexpected proposal lookup %+v", proposals)
	}

	missing := uint64(42)
	w = post(t, h, "/getProposals", GetProposalsReq{ProposalId: &missing})
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}

	w = post(t, h, "/getVotes", GetVotesReq{Voter: "BOB"})
	var votes GetVotesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &votes); err != nil {
		t.Fatal(err)
	}
	if votes.Total != 2 {
		t.Fatalf("got %d votes by BOB, want 2", votes.Total)
	}

	w = post(t, h, "/getTransfers", GetTransfersReq{ProposalId: &zero})
	var transfers GetTransfersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &transfers); err != nil {
		t.Fatal(err)
	}
	if transfers.Total != 1 || transfers.Transfers[0].To != "CAROL" {
		t.Fatalf("unexpected transfers %+v", transfers)
	}

	req := httptest.NewRequest(http.MethodGet, "/council", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var council struct {
		Council []CouncilMember `json:"council"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &council); err != nil {
		t.Fatal(err)
	}
	if len(council.Council) != 2 {
		t.Fatalf("got council %+v, want 2 members", council.Council)
	}

	w = post(t, h, "/getVotes", "not an object")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}
