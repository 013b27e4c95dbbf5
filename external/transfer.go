package external

import (
	"context"

	"github.com/calehh/fluxdao/types"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
)

// Transferer carries out transfer instructions. The engine does not wait for
// the result.
type Transferer interface {
	Transfer(ctx context.Context, t *types.Transfer) error
}

var _ Transferer = &CETransferer{}
var _ Transferer = &LogTransferer{}

type CETransferer struct {
	client cloudevents.Client
	url    string
	logger cmtlog.Logger
}

func NewCETransferer(url string, logger cmtlog.Logger) (*CETransferer, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}
	return &CETransferer{
		client: client,
		url:    url,
		logger: logger.With("module", "bank"),
	}, nil
}

func (b *CETransferer) Transfer(ctx context.Context, t *types.Transfer) error {
	event, trackingNumber, err := newEvent(TransferEventType, t)
	if err != nil {
		return err
	}
	ctx = cloudevents.ContextWithTarget(ctx, b.url)
	result := b.client.Send(ctx, event)
	code, ok := httpStatus(result)
	if !ok {
		return errors.Wrapf(ErrUndelivered, "%s: %v", trackingNumber, result)
	}
	if code/100 != 2 {
		return errors.Errorf("transfer %s refused: %v", trackingNumber, result)
	}
	b.logger.Info("transfer sent", "trackingNumber", trackingNumber, "proposal", t.ProposalID, "from", t.From, "to", t.To, "amount", t.Amount)
	return nil
}

// LogTransferer only records transfers, for nodes without a bank endpoint.
type LogTransferer struct {
	logger cmtlog.Logger
}

func NewLogTransferer(logger cmtlog.Logger) *LogTransferer {
	return &LogTransferer{logger: logger.With("module", "bank")}
}

func (b *LogTransferer) Transfer(ctx context.Context, t *types.Transfer) error {
	b.logger.Info("transfer", "proposal", t.ProposalID, "from", t.From, "to", t.To, "amount", t.Amount, "reason", t.Reason)
	return nil
}
