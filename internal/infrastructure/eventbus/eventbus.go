// Package eventbus wraps a Watermill gochannel Pub/Sub as the in-process
// channel between the chat write path and the realtime gateway.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Bus struct {
	pubsub *gochannel.GoChannel
}

func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			watermill.NopLogger{},
		),
	}
}

// Publish marshals payload and publishes it on topic. Subscribers that
// lag or are absent never fail the publish.
func (b *Bus) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// Subscribe returns the topic's message stream; it is closed when ctx is
// cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
