package external

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

func replyOutcome(w http.ResponseWriter, success bool) {
	w.Header().Set("Ce-Specversion", "1.0")
	w.Header().Set("Ce-Id", "reply-1")
	w.Header().Set("Ce-Type", "fluxdao.outcome")
	w.Header().Set("Ce-Source", "market.flux")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Outcome{Success: success})
}

func TestCEClientSubmit(t *testing.T) {
	var gotType, gotTracking string
	var gotAction types.ExternalAction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Ce-Type")
		gotTracking = r.Header.Get("Ce-Trackingnumber")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotAction); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		replyOutcome(w, true)
	}))
	defer srv.Close()

	c, err := NewCEClient(srv.URL, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	action := &types.ExternalAction{ProposalID: 4, Target: "market.flux", Kind: &types.ResoluteMarket{MarketID: 9}}
	ok, err := c.Submit(context.Background(), action)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("got failure, want success")
	}
	if gotType != "fluxdao.action.ResoluteMarket" {
		t.Fatalf("got event type %q", gotType)
	}
	if gotTracking == "" {
		t.Fatalf("missing tracking number")
	}
	if gotAction.ProposalID != 4 || gotAction.Kind.Type() != types.KindResoluteMarket {
		t.Fatalf("got action %+v", gotAction)
	}
}

func TestCEClientOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    bool
	}{
		{"failure", func(w http.ResponseWriter, r *http.Request) { replyOutcome(w, false) }, false},
		{"refused", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, false},
		{"no reply", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(c.handler)
			defer srv.Close()
			cli, err := NewCEClient(srv.URL, log.NewNopLogger())
			if err != nil {
				t.Fatal(err)
			}
			ok, err := cli.Submit(context.Background(), &types.ExternalAction{ProposalID: 1, Kind: &types.Pause{}})
			if err != nil {
				t.Fatalf("got %v, want nil", err)
			}
			if ok != c.want {
				t.Fatalf("got %v, want %v", ok, c.want)
			}
		})
	}
}

func TestCEClientUndelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewCEClient(url, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Submit(context.Background(), &types.ExternalAction{ProposalID: 1, Kind: &types.Unpause{}})
	if !errors.Is(err, ErrUndelivered) {
		t.Fatalf("got %v, want ErrUndelivered", err)
	}
}

func TestCETransferer(t *testing.T) {
	var got types.Transfer
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Ce-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewCETransferer(srv.URL, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	tr := &types.Transfer{ProposalID: 2, To: "C", Amount: 10, Reason: types.TransferReasonRefund}
	if err = b.Transfer(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	if gotType != TransferEventType || got != *tr {
		t.Fatalf("got %s %+v, want %+v", gotType, got, tr)
	}
}
