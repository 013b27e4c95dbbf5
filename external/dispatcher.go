package external

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calehh/fluxdao/types"
	"github.com/cenkalti/backoff"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

const (
	DefaultRetries  = 5
	DefaultInterval = 2 * time.Second
)

// Dispatcher releases committed outbox entries to the collaborators in the
// background and collects the outcomes of external actions. Outcomes stay
// queued until the app has committed them as confirm txs.
type Dispatcher struct {
	logger     cmtlog.Logger
	client     Client
	transferer Transferer
	retries    uint64
	interval   time.Duration

	mtx           sync.Mutex
	transfers     []types.Transfer
	actions       []types.ExternalAction
	confirmations map[uint64]types.Confirmation
	notify        chan struct{}
}

func NewDispatcher(client Client, transferer Transferer, retries uint64, interval time.Duration, logger cmtlog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dispatcher{
		logger:        logger.With("module", "dispatcher"),
		client:        client,
		transferer:    transferer,
		retries:       retries,
		interval:      interval,
		confirmations: make(map[uint64]types.Confirmation),
		notify:        make(chan struct{}, 1),
	}
}

// Dispatch queues the outbox of a committed block. It does not block.
func (d *Dispatcher) Dispatch(transfers []types.Transfer, actions []types.ExternalAction) {
	if len(transfers) == 0 && len(actions) == 0 {
		return
	}
	d.mtx.Lock()
	d.transfers = append(d.transfers, transfers...)
	d.actions = append(d.actions, actions...)
	d.mtx.Unlock()
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Confirmations returns the outcomes not yet committed, ordered by proposal.
func (d *Dispatcher) Confirmations() []types.Confirmation {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	res := make([]types.Confirmation, 0, len(d.confirmations))
	for _, c := range d.confirmations {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProposalID < res[j].ProposalID })
	return res
}

// Prune drops the outcomes for which done reports true.
func (d *Dispatcher) Prune(done func(c types.Confirmation) bool) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	for id, c := range d.confirmations {
		if done(c) {
			delete(d.confirmations, id)
		}
	}
}

func (d *Dispatcher) take() ([]types.Transfer, []types.ExternalAction) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	transfers, actions := d.transfers, d.actions
	d.transfers, d.actions = nil, nil
	return transfers, actions
}

func (d *Dispatcher) confirm(c types.Confirmation) {
	d.mtx.Lock()
	d.confirmations[c.ProposalID] = c
	d.mtx.Unlock()
}

func (d *Dispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.interval), d.retries), ctx)
}

// Start runs the worker until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-d.notify:
		}
		transfers, actions := d.take()
		for i := range transfers {
			d.transfer(ctx, &transfers[i])
		}
		for i := range actions {
			d.submit(ctx, &actions[i])
		}
	}
}

func (d *Dispatcher) transfer(ctx context.Context, t *types.Transfer) {
	err := backoff.Retry(func() error {
		err := d.transferer.Transfer(ctx, t)
		if err != nil && !errors.Is(err, ErrUndelivered) {
			return backoff.Permanent(err)
		}
		return err
	}, d.newBackOff(ctx))
	if err != nil {
		d.logger.Error("transfer fail", "proposal", t.ProposalID, "from", t.From, "to", t.To, "amount", t.Amount, "err", err)
	}
}

// submit retries only undelivered requests. An action that cannot be
// delivered is confirmed as failed so governance may submit it again.
func (d *Dispatcher) submit(ctx context.Context, action *types.ExternalAction) {
	var succeeded bool
	err := backoff.Retry(func() error {
		ok, err := d.client.Submit(ctx, action)
		if err != nil {
			if errors.Is(err, ErrUndelivered) {
				return err
			}
			return backoff.Permanent(err)
		}
		succeeded = ok
		return nil
	}, d.newBackOff(ctx))
	if err != nil {
		d.logger.Error("submit external action fail", "proposal", action.ProposalID, "err", err)
		if ctx.Err() != nil {
			return
		}
	}
	d.confirm(types.Confirmation{ProposalID: action.ProposalID, Succeeded: succeeded})
}
