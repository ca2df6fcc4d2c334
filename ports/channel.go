package ports

import (
	"context"
	"encoding/json"
)

// ChannelHandlers receive the events of a wallet channel. Implementations
// may invoke them from any goroutine.
type ChannelHandlers struct {
	OnReady   func()
	OnMessage func(data json.RawMessage)
	OnClose   func()
}

// Channel is an open message channel to an external wallet service
type Channel interface {
	Send(ctx context.Context, msg any) error
	Close() error
}

// ChannelOpener opens channels to a wallet service endpoint
type ChannelOpener interface {
	Open(ctx context.Context, endpoint string, handlers ChannelHandlers) (Channel, error)
}
