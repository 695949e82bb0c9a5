// Package netio implements the port queue abstraction that feeds a switch
// or RIB pipeline: a poll-mode source of received frame batches and a sink
// that transmits a pipeline's output (spec §6: "abstract port queue
// yielding buffer batches"). RawEthernetPort is the real AF_PACKET
// implementation; LoopbackPort is an in-memory stand-in used by tests,
// which never touches a NIC.
package netio

import (
	"context"

	"github.com/dantte-lp/gdp-router/internal/gdp"
)

// Port is one named network attachment point: a switch node has one Port
// per directly connected link, and the RIB node has one Port toward the
// switches that query it.
type Port interface {
	// Poll blocks until at least one frame has arrived or ctx is done, and
	// returns every parsed GDP packet in the batch. A frame that fails to
	// parse as a well-formed GDP-over-Ethernet stack is dropped and does
	// not fail the whole batch.
	Poll(ctx context.Context) ([]*gdp.Packet, error)

	// Send transmits every packet in batch, in order, and takes ownership
	// of each packet. RawEthernetPort releases each packet's mbuf back to
	// the pool once the frame has been handed to the kernel, whether or not
	// the individual send succeeded; LoopbackPort passes the packet itself
	// to the receiving port. It returns the first transmit error
	// encountered, if any.
	Send(batch []*gdp.Packet) error

	// Name identifies the port for logging and metrics (spec §6: the two
	// named ports eth1/eth2).
	Name() string

	// Close releases the underlying socket or channel. Poll and Send must
	// not be called again afterward.
	Close() error
}
