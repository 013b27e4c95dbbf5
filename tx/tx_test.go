package tx

import (
	"testing"

	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/pkg/errors"
)

const chainID = "fluxdao-test"

func TestSignRoundTrip(t *testing.T) {
	priv := ed25519.GenPrivKey()
	body := &ProposeTx{
		Description: "resolve market 7",
		Kind:        types.Kind{ProposalKind: &types.ResoluteMarket{MarketID: 7, PayoutNumerator: []uint64{0, 100}}},
		Deposit:     10,
	}
	btx := NewFluxTx(FluxTxTypePropose, 3, priv.PubKey(), body)
	if err := btx.Sign(priv, chainID); err != nil {
		t.Fatalf("sign: %v", err)
	}
	dat, err := MarshalFluxTx(btx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := UnmarshalFluxTx(dat)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != FluxTxTypePropose || got.Nonce != 3 {
		t.Fatalf("got %s nonce %d", got.Type, got.Nonce)
	}
	if got.Caller() != types.AccountID(priv.PubKey().Address().String()) {
		t.Fatalf("caller %s does not match the signing key", got.Caller())
	}
	ok, err := got.Verify(chainID)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, _ = got.Verify("other-chain")
	if ok {
		t.Fatalf("signature valid on another chain")
	}

	ptx := got.Tx.(*ProposeTx)
	market, isMarket := ptx.Kind.ProposalKind.(*types.ResoluteMarket)
	if !isMarket || market.MarketID != 7 || len(market.PayoutNumerator) != 2 {
		t.Fatalf("unexpected kind %#v", ptx.Kind.ProposalKind)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	priv := ed25519.GenPrivKey()
	btx := NewFluxTx(FluxTxTypeVote, 0, priv.PubKey(), &VoteTx{Proposal: 1, Vote: types.VoteYes})
	if err := btx.Sign(priv, chainID); err != nil {
		t.Fatal(err)
	}
	btx.Tx = &VoteTx{Proposal: 1, Vote: types.VoteNo}
	if ok, _ := btx.Verify(chainID); ok {
		t.Fatalf("tampered vote verified")
	}

	btx.PubKey = []byte{1, 2, 3}
	if _, err := btx.Verify(chainID); !errors.Is(err, ErrInvalidTx) {
		t.Fatalf("got %v, want ErrInvalidTx", err)
	}
}

func TestUnmarshalFluxTx(t *testing.T) {
	cases := []struct {
		name string
		dat  string
		want error
	}{
		{"unknown type", `{"type":"stake","tx":{}}`, ErrUnsupportedTxType},
		{"not json", `{"type":`, ErrUnsupportedTxType},
		{"bad version", `{"version":9,"type":"exit","tx":{}}`, ErrUnsupportedTxVersion},
		{"bad body", `{"type":"vote","tx":{"proposal":"x"}}`, ErrInvalidTx},
		{"bad vote", `{"type":"vote","tx":{"proposal":1,"vote":"Maybe"}}`, ErrInvalidTx},
		{"unknown kind", `{"type":"propose","tx":{"kind":{"type":"Mint"}}}`, ErrInvalidTx},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := UnmarshalFluxTx([]byte(c.dat))
			if !errors.Is(err, c.want) {
				t.Fatalf("got %v, want %v", err, c.want)
			}
		})
	}

	btx, err := UnmarshalFluxTx([]byte(`{"type":"confirm","nonce":4,"tx":{"proposal":2,"succeeded":true}}`))
	if err != nil {
		t.Fatal(err)
	}
	ctx := btx.Tx.(*ConfirmTx)
	if ctx.Proposal != 2 || !ctx.Succeeded || btx.Nonce != 4 {
		t.Fatalf("unexpected confirm tx %+v", ctx)
	}
}
