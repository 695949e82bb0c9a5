package netio

import (
	"context"
	"errors"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// ErrPortClosed is returned by Poll/Send on a Port that has been closed.
var ErrPortClosed = errors.New("netio: port closed")

// LoopbackPort is an in-memory Port backed by a pair of buffered channels.
// It never touches a real interface; two LoopbackPorts can be cross-wired
// (one's outbound channel feeding the other's inbound channel) to drive a
// full switch<->RIB exchange in a test, or a single one can be fed
// directly with Inject.
type LoopbackPort struct {
	name   string
	inbox  chan *gdp.Packet
	outbox chan *gdp.Packet
	closed chan struct{}
}

// NewLoopbackPort creates a LoopbackPort with the given queue depth for its
// inbound channel. Use Cross to connect two of them bidirectionally.
func NewLoopbackPort(name string, depth int) *LoopbackPort {
	return &LoopbackPort{
		name:   name,
		inbox:  make(chan *gdp.Packet, depth),
		outbox: make(chan *gdp.Packet, depth),
		closed: make(chan struct{}),
	}
}

// Cross wires a's outbound traffic into b's inbox and b's outbound traffic
// into a's inbox, so packets a.Send writes become visible to b.Poll and
// vice versa.
func Cross(a, b *LoopbackPort) {
	a.outbox = b.inbox
	b.outbox = a.inbox
}

// Inject delivers pkt directly to this port's inbox, as if it had just
// arrived over the wire. Used by tests that do not need a Cross-wired
// peer.
func (p *LoopbackPort) Inject(pkt *gdp.Packet) {
	p.inbox <- pkt
}

// Poll returns the next available packet, or blocks until one arrives, ctx
// is cancelled, or the port is closed.
func (p *LoopbackPort) Poll(ctx context.Context) ([]*gdp.Packet, error) {
	select {
	case pkt := <-p.inbox:
		return []*gdp.Packet{pkt}, nil
	case <-p.closed:
		return nil, ErrPortClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers every packet in batch to the cross-wired peer's inbox (or
// to this port's own outbox if uncrossed), in order.
func (p *LoopbackPort) Send(batch []*gdp.Packet) error {
	for _, pkt := range batch {
		select {
		case p.outbox <- pkt:
		case <-p.closed:
			return ErrPortClosed
		}
	}
	return nil
}

// Name returns the port's configured name.
func (p *LoopbackPort) Name() string { return p.name }

// Close marks the port closed; any goroutine blocked in Poll or Send
// unblocks with ErrPortClosed.
func (p *LoopbackPort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}
