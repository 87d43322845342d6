// Package transport opens the network endpoints the file server runs
// on. The server loop only ever sees a net.Listener and the net.Conn
// values it yields, so tests can swap in any stream transport.
package transport

import (
	"context"
	"net"
	"time"
)

// Listener opens the server socket.
type Listener interface {
	Listen(ctx context.Context, network, address string) (net.Listener, error)
}

// Dialer opens client connections. The server never dials; it exists
// for tooling and tests that drive a running server.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}

// TCPListener binds plain TCP sockets.
type TCPListener struct {
	// KeepAlive is the TCP keep-alive period applied to accepted
	// connections. Zero uses the system default, negative disables it.
	KeepAlive time.Duration
}

// Listen binds address. The context only bounds the bind itself; the
// returned listener lives until closed.
func (l *TCPListener) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: l.KeepAlive}
	return lc.Listen(ctx, network, address)
}

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, network, address)
}
