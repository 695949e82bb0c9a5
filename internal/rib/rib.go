// Package rib implements both sides of the name-to-address query protocol:
// the switch role's query construction and reply installation, and the RIB
// node's query handling (spec §3 "RIB responder", §4.3 "rib_pipeline").
package rib

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/store"
)

// Endpoint is re-exported for callers that only import this package.
type Endpoint = gdp.Endpoint

// replyTTL is how long a binding learned from a RibReply stays valid before
// the switch must re-query the RIB. The source has no equivalent (the
// reference binding there is permanent once installed); the spec's active-
// expiry mechanism requires a finite TTL for anything that isn't a static
// route, so RIB-learned bindings get one here (see DESIGN.md).
const replyTTL = 30 * time.Second

// ErrBindingNotFound indicates the RIB node's store has no entry for the
// queried name; per spec §9's open-question resolution, this drops the
// query rather than replying with a placeholder.
var ErrBindingNotFound = errors.New("rib: no binding for queried name")

// CreateRIBRequest builds a RibGet packet addressed to the RIB, querying
// key. selfName is this node's identity (stamped as the GDP src so the RIB
// node's reply can be correlated back, though nothing here actually reads
// it); selfEndpoint and ribEndpoint give the Ethernet/IPv4/UDP addressing
// for the request (spec §4.3: "emit(create_rib_request)").
func CreateRIBRequest(key, selfName gdp.Name, selfEndpoint, ribEndpoint Endpoint) (*gdp.Packet, error) {
	pkt, err := gdp.Build(selfEndpoint, ribEndpoint)
	if err != nil {
		return nil, fmt.Errorf("rib: create request: %w", err)
	}

	pkt.SetAction(gdp.ActionRibGet)
	pkt.SetSrc(selfName)
	pkt.SetDst(key)
	pkt.ReconcileAll()

	return pkt, nil
}

// HandleRIBReply installs the binding carried by a RibReply packet into st:
// the queried name is pkt's dst field, the resolved address is its 4-byte
// data region (spec §4.3: "handle_rib_reply").
func HandleRIBReply(pkt *gdp.Packet, st *store.Store) error {
	data, err := pkt.Data()
	if err != nil {
		return fmt.Errorf("rib: handle reply: %w", err)
	}
	if len(data) != 4 {
		return fmt.Errorf("rib: handle reply: value must be 4 bytes, got %d", len(data))
	}

	addr := netip.AddrFrom4([4]byte(data))
	st.Insert(pkt.Dst(), addr, replyTTL)
	return nil
}

// HandleRIBQuery answers a RibGet packet with a freshly built RibReply:
// Ethernet and IPv4 addresses are swapped, UDP ports are swapped, the
// action becomes RibReply, and the data region carries the resolved
// address. On a store miss it returns ErrBindingNotFound and the query is
// dropped (spec §9: "on miss, drop") (spec §4.3: "handle_rib_query").
// pkt's own mbuf is released back to the pool: the reply lives in a freshly
// built one, and the request has nothing left to do with its buffer.
func HandleRIBQuery(pkt *gdp.Packet, st *store.Store) (*gdp.Packet, error) {
	key := pkt.Dst()

	addr, ok := st.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("rib: handle query for %s: %w", key, ErrBindingNotFound)
	}

	udp := pkt.Deparse()
	ip := udp.Envelope()
	eth := ip.Envelope()

	reply, err := gdp.Build(
		Endpoint{MAC: eth.Dst(), IP: ip.Dst(), Port: udp.DstPort()},
		Endpoint{MAC: eth.Src(), IP: ip.Src(), Port: udp.SrcPort()},
	)
	if err != nil {
		return nil, fmt.Errorf("rib: handle query: %w", err)
	}

	reply.SetAction(gdp.ActionRibReply)
	reply.SetDst(key)
	value := addr.As4()
	if err := reply.SetData(value[:]); err != nil {
		reply.Release()
		return nil, fmt.Errorf("rib: handle query: %w", err)
	}
	reply.ReconcileAll()

	pkt.Release()
	return reply, nil
}
