package azure

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// Notify publishes over NATS. The pack carries no Azure Service Bus/Event Grid client,
// so the Azure capability reuses the same best-effort event bus the Local variant
// wires (see DESIGN.md); Notify's contract (spec §4.1) never promised a cloud-native
// transport, only fire-and-forget delivery.
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
