// Package notify publishes site map updates to other services
package notify

import (
	"context"
	"time"

	"github.com/foomo/linkserver/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultSubject = "linkserver.sitemap.updated"
	// HeaderRunID lets consumers drop duplicates
	HeaderRunID = "Nats-Msg-Id"
)

type (
	NATS struct {
		l       *zap.Logger
		conn    *nats.Conn
		name    string
		subject string
		timeout time.Duration
	}
	NATSOption func(*NATS)
)

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func NATSWithSubject(v string) NATSOption {
	return func(o *NATS) {
		o.subject = v
	}
}

// NATSWithName client name shown by the nats server
func NATSWithName(v string) NATSOption {
	return func(o *NATS) {
		o.name = v
	}
}

// NATSWithTimeout max time to connect and to flush a notification
func NATSWithTimeout(v time.Duration) NATSOption {
	return func(o *NATS) {
		o.timeout = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func NewNATS(l *zap.Logger, url string, opts ...NATSOption) (*NATS, error) {
	inst := &NATS{
		l:       l.Named("nats"),
		name:    "linkserver",
		subject: DefaultSubject,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(inst)
	}

	conn, err := nats.Connect(url,
		nats.Name(inst.name),
		nats.Timeout(inst.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			inst.l.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			inst.l.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to nats")
	}
	inst.conn = conn
	inst.l.Info("connected", zap.String("url", conn.ConnectedUrl()), zap.String("subject", inst.subject))
	return inst, nil
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Notify publishes event and waits until the server received it
func (n *NATS) Notify(ctx context.Context, event *responses.SiteMapUpdated) error {
	msg, err := n.message(event)
	if err != nil {
		return err
	}
	if err := n.conn.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "failed to publish notification")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return errors.Wrap(err, "failed to flush notification")
	}
	n.l.Debug("published", zap.String("run_id", event.RunID))
	return nil
}

// Close drains pending messages and closes the connection
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (n *NATS) message(event *responses.SiteMapUpdated) (*nats.Msg, error) {
	if event == nil {
		return nil, errors.New("event must not be nil")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal notification")
	}
	msg := nats.NewMsg(n.subject)
	msg.Data = data
	msg.Header.Set(HeaderRunID, event.RunID)
	return msg, nil
}
