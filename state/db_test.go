package state

import (
	"bytes"
	"testing"
	"time"

	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/libs/log"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &StateHeader{
		Height:   12,
		ChainId:  "fluxdao-1",
		Hash:     []byte{1, 2, 3},
		RootHash: []byte{4, 5},
		Time:     t0.UnixNano(),
	}
	got := new(StateHeader)
	if err := got.Unmarshal(h.Marshal()); err != nil {
		t.Fatal(err)
	}
	if got.Height != h.Height || got.ChainId != h.ChainId || got.Time != h.Time {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if !bytes.Equal(got.Hash, h.Hash) || !bytes.Equal(got.RootHash, h.RootHash) {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if !got.BlockTime().Equal(t0) {
		t.Fatalf("got block time %v, want %v", got.BlockTime(), t0)
	}
}

func commit(t *testing.T, db *StateDB, st *State) {
	t.Helper()
	if _, err := db.Update(st); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SetState(st); err != nil {
		t.Fatal(err)
	}
}

func TestStateDBPersists(t *testing.T) {
	dir := t.TempDir()
	db, err := NewStateDB(dir, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	st := db.NewState()
	st.SetChainId("fluxdao-test")
	if err = st.InitGenesis(testGenesis(alice, bob)); err != nil {
		t.Fatal(err)
	}
	commit(t, db, st)
	first := db.Header().Hash

	st = db.NewState()
	st.SetBlockTime(t0)
	id := propose(t, st, carol, &types.Payout{Target: carol, Amount: 5}, 10, t0)
	if err = st.IncNonce(carol); err != nil {
		t.Fatal(err)
	}
	if err = st.Vote(alice, id, types.VoteNo, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	commit(t, db, st)
	if bytes.Equal(first, db.Header().Hash) {
		t.Fatalf("app hash did not change")
	}
	if h := db.Header().Height; h != 1 {
		t.Fatalf("got height %d, want 1", h)
	}
	if err = db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = NewStateDB(dir, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	council, _ := db.GetCouncil()
	if len(council) != 2 || council[0] != alice || council[1] != bob {
		t.Fatalf("got council %v", council)
	}
	p, _, err := db.GetProposal(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != types.ProposalStatusRejected || p.Votes[alice] != types.VoteNo {
		t.Fatalf("unexpected proposal %+v", p)
	}
	if _, ok := p.Kind.(*types.Payout); !ok {
		t.Fatalf("got kind %T, want Payout", p.Kind)
	}
	nonce, err := db.GetNonce(carol)
	if err != nil || nonce != 1 {
		t.Fatalf("got nonce %d err %v, want 1", nonce, err)
	}
	params, _ := db.GetParams()
	if params.Bond != 10 || params.ExternalAddress != "market.flux" {
		t.Fatalf("unexpected params %+v", params)
	}
	if db.Header().ChainId != "fluxdao-test" {
		t.Fatalf("chain id lost")
	}

	st = db.NewState()
	if lv, ok, _ := st.lastVote(alice); !ok || lv != id {
		t.Fatalf("got last vote %d, want %d", lv, id)
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	run := func() []byte {
		db, err := NewMemStateDB(log.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		st := db.NewState()
		if err = st.InitGenesis(testGenesis(alice, bob, carol)); err != nil {
			t.Fatal(err)
		}
		for _, m := range []types.AccountID{carol, alice, bob} {
			if err = st.IncNonce(m); err != nil {
				t.Fatal(err)
			}
		}
		propose(t, st, bob, &types.Unpause{}, 10, t0)
		h, err := db.Update(st)
		if err != nil {
			t.Fatal(err)
		}
		return h.Bytes()
	}
	if a, b := run(), run(); !bytes.Equal(a, b) {
		t.Fatalf("same block produced hashes %x and %x", a, b)
	}
}

func TestCommittedStateIsIsolated(t *testing.T) {
	db, st := newTestState(t, testGenesis(alice))
	commit(t, db, st)

	work := db.NewState()
	propose(t, work, alice, &types.Pause{}, 10, t0)
	if count, _ := db.GetProposalCount(); count != 0 {
		t.Fatalf("uncommitted proposal visible: count %d", count)
	}
	commit(t, db, work)
	if count, _ := db.GetProposalCount(); count != 1 {
		t.Fatalf("got count %d, want 1", count)
	}
}

func TestReadsIgnoreUnsavedBlock(t *testing.T) {
	db, st := newTestState(t, testGenesis(alice, bob))
	id := propose(t, st, carol, &types.Pause{}, 10, t0)
	commit(t, db, st)
	// a block that leaves the proposal out of the committed cache
	idle := db.NewState()
	if err := idle.IncNonce(bob); err != nil {
		t.Fatal(err)
	}
	commit(t, db, idle)

	work := db.NewState()
	if err := work.Vote(alice, id, types.VoteNo, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := work.IncNonce(alice); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Update(work); err != nil {
		t.Fatal(err)
	}
	p, _, err := db.GetProposal(id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != types.ProposalStatusVoting || p.VoteNo != 0 {
		t.Fatalf("unsaved vote visible: %+v", p)
	}
	if nonce, err := db.GetNonce(alice); err != nil || nonce != 0 {
		t.Fatalf("got nonce %d err %v, want 0", nonce, err)
	}

	if _, err = db.SetState(work); err != nil {
		t.Fatal(err)
	}
	if p, _, err = db.GetProposal(id); err != nil || p.VoteNo != 1 {
		t.Fatalf("got %+v err %v, want one no vote", p, err)
	}
	if nonce, err := db.GetNonce(alice); err != nil || nonce != 1 {
		t.Fatalf("got nonce %d err %v, want 1", nonce, err)
	}
}
