package external

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calehh/fluxdao/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

type countingTransferer struct {
	n atomic.Int32
}

func (c *countingTransferer) Transfer(ctx context.Context, t *types.Transfer) error {
	c.n.Add(1)
	return nil
}

func waitConfirmations(t *testing.T, d *Dispatcher, n int) []types.Confirmation {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cs := d.Confirmations(); len(cs) >= n {
			return cs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d confirmations", n)
	return nil
}

func TestDispatcherConfirms(t *testing.T) {
	var calls atomic.Int32
	client := &MockClient{Fn: func(action *types.ExternalAction) (bool, error) {
		// the first action is delivered on the third try
		if action.ProposalID == 3 && calls.Add(1) < 3 {
			return false, errors.Wrap(ErrUndelivered, "connection refused")
		}
		return action.ProposalID == 3, nil
	}}
	bank := &countingTransferer{}
	d := NewDispatcher(client, bank, 5, time.Millisecond, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Dispatch(
		[]types.Transfer{{ProposalID: 1, To: "A", Amount: 1}},
		[]types.ExternalAction{
			{ProposalID: 3, Kind: &types.SetGov{NewGov: "g"}},
			{ProposalID: 1, Kind: &types.Pause{}},
		},
	)
	cs := waitConfirmations(t, d, 2)
	if cs[0].ProposalID != 1 || cs[0].Succeeded {
		t.Fatalf("got %+v, want proposal 1 failed", cs[0])
	}
	if cs[1].ProposalID != 3 || !cs[1].Succeeded {
		t.Fatalf("got %+v, want proposal 3 succeeded", cs[1])
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("got %d submissions, want 3", got)
	}
	if got := bank.n.Load(); got != 1 {
		t.Fatalf("got %d transfers, want 1", got)
	}

	d.Prune(func(c types.Confirmation) bool { return c.ProposalID == 1 })
	if cs = d.Confirmations(); len(cs) != 1 || cs[0].ProposalID != 3 {
		t.Fatalf("got %+v after prune", cs)
	}
}

func TestDispatcherGivesUp(t *testing.T) {
	client := &MockClient{Fn: func(action *types.ExternalAction) (bool, error) {
		return false, errors.Wrap(ErrUndelivered, "no route")
	}}
	d := NewDispatcher(client, NewLogTransferer(log.NewNopLogger()), 2, time.Millisecond, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Start(ctx)

	d.Dispatch(nil, []types.ExternalAction{{ProposalID: 5, Kind: &types.Unpause{}}})
	cs := waitConfirmations(t, d, 1)
	if cs[0].ProposalID != 5 || cs[0].Succeeded {
		t.Fatalf("got %+v, want a failed confirmation", cs[0])
	}
}
