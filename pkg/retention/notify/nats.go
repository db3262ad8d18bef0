package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

// DefaultSubjectPrefix is the subject root for run events.
const DefaultSubjectPrefix = "chryso.retention"

// Publisher is the subset of *nats.Conn used for publishing.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSNotifier publishes run events to NATS core pub/sub.
type NATSNotifier struct {
	pub    Publisher
	prefix string

	// conn is set when the notifier owns the connection.
	conn *nats.Conn
}

// NewNATSNotifier publishes through pub under prefix. An empty prefix uses
// DefaultSubjectPrefix.
func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{pub: pub, prefix: strings.TrimSuffix(prefix, ".")}
}

// ConnectNATS dials url and returns a notifier owning the connection.
// The connection reconnects indefinitely.
func ConnectNATS(url, prefix string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url,
		nats.Name("chryso-retention"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	n := NewNATSNotifier(nc, prefix)
	n.conn = nc
	return n, nil
}

// Subject returns the subject ev is published on.
func (n *NATSNotifier) Subject(ev *retention.RunEvent) string {
	return fmt.Sprintf("%s.%s.%s", n.prefix, subjectToken(ev.OrganizationID), subjectToken(string(ev.Outcome)))
}

// Notify publishes ev as JSON. The run id is sent as Nats-Msg-Id so
// JetStream consumers can deduplicate, and the trace context of ctx travels
// in the traceparent header.
func (n *NATSNotifier) Notify(ctx context.Context, ev *retention.RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	msg := &nats.Msg{
		Subject: n.Subject(ev),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(nats.MsgIdHdr, ev.RunID)
	tracing.Inject(ctx, http.Header(msg.Header))

	if err := n.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

// Close drains and closes an owned connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// subjectToken makes s safe for use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
