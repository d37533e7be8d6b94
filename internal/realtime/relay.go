package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Relay carries room broadcasts between server processes. The Redis PubSub
// store satisfies it. Room names are used as channel names.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (<-chan []byte, func(), error)
}

// relayFrame wraps an encoded envelope with its origin node so a node can
// skip its own messages when they come back from the relay.
type relayFrame struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Except string          `json:"except,omitempty"`
	Data   json.RawMessage `json:"data"`
}

func encodeRelayFrame(f relayFrame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("realtime.encodeRelayFrame: %w", err)
	}
	return b, nil
}

func decodeRelayFrame(b []byte) (relayFrame, error) {
	var f relayFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return relayFrame{}, fmt.Errorf("realtime.decodeRelayFrame: %w", err)
	}
	if f.Room == "" || len(f.Data) == 0 {
		return relayFrame{}, fmt.Errorf("realtime.decodeRelayFrame: incomplete frame")
	}
	return f, nil
}
