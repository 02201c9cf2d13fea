package local

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// Notify publishes events over NATS for the Local cloud-runtime. It plays the same
// role the platform's physics-module template filled with a direct *nats.Conn: a thin
// fire-and-forget publisher, since spec §4.1 defines Notify.publish as best-effort.
type Notify struct {
	nc *nats.Conn
}

func NewNotify(url string) (*Notify, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "connect nats %s", url)
	}
	return &Notify{nc: nc}, nil
}

func (n *Notify) Publish(_ context.Context, topic string, payload []byte) error {
	if n.nc == nil {
		return nil
	}
	if err := n.nc.Publish(topic, payload); err != nil {
		return apperrors.Wrap(apperrors.Transient, err, "publish to %s", topic)
	}
	return nil
}

func (n *Notify) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}

// NoopNotify is used when no NATS endpoint is configured; callers should not fail
// hard on a missing event bus (spec §4.1: Notify is best-effort fanout).
type NoopNotify struct{}

func (NoopNotify) Publish(_ context.Context, _ string, _ []byte) error {
	return nil
}
