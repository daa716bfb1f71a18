// Package transport opens the byte channels a protocol session runs on.
package transport

import (
	"context"
	"fmt"
	"net"
	"tpa_auth/internal/protocol/wire"

	"github.com/gorilla/websocket"
)

const (
	TCP = "tcp"
	WS  = "ws"
)

// Dial connects to address over network: "tcp" takes host:port, "ws" a
// ws:// or wss:// URL.
func Dial(ctx context.Context, network, address string) (wire.Channel, error) {
	switch network {
	case TCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", address, err)
		}
		return conn, nil
	case WS:
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", address, err)
		}
		return NewWSChannel(conn), nil
	default:
		return nil, fmt.Errorf("transport: unsupported network %q", network)
	}
}
