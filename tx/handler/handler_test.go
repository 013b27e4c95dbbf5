package handler

import (
	"context"
	"testing"
	"time"

	"github.com/calehh/fluxdao/state"
	"github.com/calehh/fluxdao/tx"
	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

var genesisTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type member struct {
	priv ed25519.PrivKey
	id   types.AccountID
}

func newMember() member {
	priv := ed25519.GenPrivKey()
	return member{priv: priv, id: types.AccountID(priv.PubKey().Address().String())}
}

func newTestState(t *testing.T, council ...member) *state.State {
	t.Helper()
	db, err := state.NewMemStateDB(log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	st := db.NewState()
	g := types.DefaultGenesisState(council[0].id)
	g.Council = nil
	for _, m := range council {
		g.Council = append(g.Council, m.id)
	}
	g.Bond = 10
	if err = st.InitGenesis(g); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want uint32
	}{
		{nil, CodeOK},
		{state.ErrAlreadyVoted, CodeAlreadyVoted},
		{errors.Wrap(state.ErrVotingActive, "member voted on 3"), CodeVotingActive},
		{errors.Wrapf(tx.ErrUnsupportedTxType, "%q", "stake"), CodeUnsupportedTx},
		{errors.New("disk full"), CodeInternal},
	}
	for _, c := range cases {
		if got := ErrorCode(c.err); got != c.want {
			t.Fatalf("ErrorCode(%v) got %d, want %d", c.err, got, c.want)
		}
	}
}

func TestCheckLeavesStateUntouched(t *testing.T) {
	a := newMember()
	st := newTestState(t, a)
	h := NewProposalTxHandler(log.NewNopLogger())
	btx := tx.NewFluxTx(tx.FluxTxTypePropose, 0, a.priv.PubKey(), &tx.ProposeTx{
		Description: "pay the auditors",
		Kind:        types.Kind{ProposalKind: &types.Payout{Target: a.id, Amount: 5}},
		Deposit:     10,
	})

	res, err := h.Check(context.Background(), st, btx, genesisTime)
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != CodeOK {
		t.Fatalf("got code %d (%s), want %d", res.Code, res.Log, CodeOK)
	}
	if st.ProposalCount() != 0 {
		t.Fatalf("check created a proposal")
	}
}

func TestProcessConsumesNonceOnFailure(t *testing.T) {
	a, outsider := newMember(), newMember()
	st := newTestState(t, a)
	handlers := Handlers(log.NewNopLogger())
	ctx := context.Background()

	propose := tx.NewFluxTx(tx.FluxTxTypePropose, 0, a.priv.PubKey(), &tx.ProposeTx{
		Description: "rename",
		Kind:        types.Kind{ProposalKind: &types.ChangePurpose{Purpose: "prediction markets"}},
		Deposit:     10,
	})
	res, err := handlers[propose.Type].Process(ctx, st, propose, genesisTime)
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != CodeOK || len(res.Events) == 0 {
		t.Fatalf("got code %d with %d events", res.Code, len(res.Events))
	}

	vote := tx.NewFluxTx(tx.FluxTxTypeVote, 0, outsider.priv.PubKey(), &tx.VoteTx{Proposal: 0, Vote: types.VoteYes})
	res, err = handlers[vote.Type].Process(ctx, st, vote, genesisTime.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != CodeUnauthorized {
		t.Fatalf("got code %d, want %d", res.Code, CodeUnauthorized)
	}
	if len(res.Events) != 0 {
		t.Fatalf("failed tx reported events")
	}
	nonce, err := st.Nonce(outsider.id)
	if err != nil {
		t.Fatal(err)
	}
	if nonce != 1 {
		t.Fatalf("got nonce %d, want 1", nonce)
	}
	p, err := st.Proposal(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.VoteYes != 0 {
		t.Fatalf("rejected vote was counted")
	}
}

func TestProcessRunsGovernanceFlow(t *testing.T) {
	a, b := newMember(), newMember()
	st := newTestState(t, a, b)
	handlers := Handlers(log.NewNopLogger())
	ctx := context.Background()
	now := genesisTime

	steps := []struct {
		btx  *tx.FluxTx
		want uint32
	}{
		{tx.NewFluxTx(tx.FluxTxTypePropose, 0, a.priv.PubKey(), &tx.ProposeTx{
			Description: "change bond",
			Kind:        types.Kind{ProposalKind: &types.ChangeBond{Bond: 50}},
			Deposit:     10,
		}), CodeOK},
		{tx.NewFluxTx(tx.FluxTxTypeFinalize, 1, a.priv.PubKey(), &tx.FinalizeTx{Proposal: 0}), CodeNotResolved},
		{tx.NewFluxTx(tx.FluxTxTypeVote, 2, a.priv.PubKey(), &tx.VoteTx{Proposal: 0, Vote: types.VoteYes}), CodeOK},
		{tx.NewFluxTx(tx.FluxTxTypeVote, 3, a.priv.PubKey(), &tx.VoteTx{Proposal: 0, Vote: types.VoteYes}), CodeAlreadyFinalized},
		{tx.NewFluxTx(tx.FluxTxTypeFinalizeExternal, 0, b.priv.PubKey(), &tx.FinalizeExternalTx{Proposal: 0}), CodeValidation},
		{tx.NewFluxTx(tx.FluxTxTypeConfirm, 1, b.priv.PubKey(), &tx.ConfirmTx{Proposal: 0, Succeeded: true}), CodeUnauthorized},
		{tx.NewFluxTx(tx.FluxTxTypeExit, 2, b.priv.PubKey(), &tx.ExitTx{}), CodeOK},
		{tx.NewFluxTx(tx.FluxTxTypeExit, 3, b.priv.PubKey(), &tx.ExitTx{}), CodeNotInCouncil},
	}
	for i, step := range steps {
		now = now.Add(time.Minute)
		res, err := handlers[step.btx.Type].Process(ctx, st, step.btx, now)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Code != step.want {
			t.Fatalf("step %d (%s): got code %d (%s), want %d", i, step.btx.Type, res.Code, res.Log, step.want)
		}
	}
	if got := st.Params().Bond; got != 50 {
		t.Fatalf("got bond %d, want 50", got)
	}
	if st.IsMember(b.id) {
		t.Fatalf("%s still in council", b.id)
	}
}

func TestProcessRejectsMismatchedBody(t *testing.T) {
	a := newMember()
	st := newTestState(t, a)
	btx := tx.NewFluxTx(tx.FluxTxTypeVote, 0, a.priv.PubKey(), &tx.ExitTx{})
	res, err := NewVoteTxHandler(log.NewNopLogger()).Process(context.Background(), st, btx, genesisTime)
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != CodeInvalidTx {
		t.Fatalf("got code %d, want %d", res.Code, CodeInvalidTx)
	}
}
