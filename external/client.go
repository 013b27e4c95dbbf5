package external

import (
	"context"
	"fmt"

	"github.com/calehh/fluxdao/types"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
	uuid "github.com/satori/uuid"
)

const (
	EventSource       = "fluxdao"
	TransferEventType = "fluxdao.transfer"
	// TrackingNumberExt carries the id the external system echoes in its logs.
	TrackingNumberExt = "trackingnumber"
)

// ErrUndelivered marks a request that never reached the external system.
// Only these are retried.
var ErrUndelivered = errors.New("event undelivered")

func ActionEventType(kind types.KindType) string {
	return fmt.Sprintf("fluxdao.action.%s", kind)
}

// Client hands accepted delegated proposals to the external protocol.
type Client interface {
	Submit(ctx context.Context, action *types.ExternalAction) (bool, error)
}

// Outcome is the data of the external system's reply.
type Outcome struct {
	Success bool `json:"success"`
}

var _ Client = &CEClient{}
var _ Client = &MockClient{}

// CEClient submits actions as CloudEvents over HTTP and reads the outcome
// from the reply event.
type CEClient struct {
	client cloudevents.Client
	url    string
	logger cmtlog.Logger
}

func NewCEClient(url string, logger cmtlog.Logger) (*CEClient, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}
	return &CEClient{
		client: client,
		url:    url,
		logger: logger.With("module", "external"),
	}, nil
}

// httpStatus returns the status of the response behind result. It reports
// false when the request never got a response.
func httpStatus(result cloudevents.Result) (int, bool) {
	var res *cehttp.Result
	if !cloudevents.ResultAs(result, &res) {
		return 0, false
	}
	return res.StatusCode, true
}

func newEvent(tp string, data any) (cloudevents.Event, string, error) {
	trackingNumber := uuid.NewV4().String()
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewV4().String())
	event.SetSource(EventSource)
	event.SetType(tp)
	event.SetExtension(TrackingNumberExt, trackingNumber)
	err := event.SetData(cloudevents.ApplicationJSON, data)
	return event, trackingNumber, err
}

// Submit sends action and waits for the outcome. A refused request or a reply
// without an outcome counts as a failed action.
func (c *CEClient) Submit(ctx context.Context, action *types.ExternalAction) (bool, error) {
	event, trackingNumber, err := newEvent(ActionEventType(action.Kind.Type()), action)
	if err != nil {
		return false, err
	}
	c.logger.Info("submit external action", "trackingNumber", trackingNumber, "proposal", action.ProposalID, "kind", action.Kind.Type())

	ctx = cloudevents.ContextWithTarget(ctx, c.url)
	resp, result := c.client.Request(ctx, event)
	code, ok := httpStatus(result)
	if !ok {
		return false, errors.Wrapf(ErrUndelivered, "%s: %v", trackingNumber, result)
	}
	if code/100 != 2 {
		c.logger.Error("external action refused", "trackingNumber", trackingNumber, "status", code)
		return false, nil
	}
	if resp == nil {
		c.logger.Error("external action has no outcome", "trackingNumber", trackingNumber)
		return false, nil
	}
	var out Outcome
	if err = resp.DataAs(&out); err != nil {
		c.logger.Error("decode outcome fail", "trackingNumber", trackingNumber, "err", err)
		return false, nil
	}
	c.logger.Info("external action done", "trackingNumber", trackingNumber, "success", out.Success)
	return out.Success, nil
}

// MockClient answers every action with Outcome, or with Fn when set.
type MockClient struct {
	Outcome bool
	Fn      func(action *types.ExternalAction) (bool, error)
}

func NewMockClient() *MockClient {
	return &MockClient{Outcome: true}
}

func (m *MockClient) Submit(ctx context.Context, action *types.ExternalAction) (bool, error) {
	if m.Fn != nil {
		return m.Fn(action)
	}
	return m.Outcome, nil
}
