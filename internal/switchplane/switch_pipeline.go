package switchplane

import (
	"log/slog"
	"net/netip"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/pipeline"
	"github.com/dantte-lp/gdp-router/internal/rib"
	"github.com/dantte-lp/gdp-router/internal/store"
)

// Identity is this node's switch-role identity: the GdpName it stamps into
// last_hop on forward, and the Ethernet/IPv4/port tuple it uses to address
// itself when it needs to originate a packet (a RIB query).
type Identity struct {
	Name     gdp.Name
	Endpoint gdp.Endpoint
}

// SwitchPipeline dispatches a batch of parsed, decrypted GDP packets by
// action and applies the switch role's rewrites (spec §4.3: "switch_
// pipeline").
//
//   - Forward: ttl==0 is dropped outright; otherwise group by forwarding-
//     table hit/miss. A hit is rewritten in place and forwarded on. A miss
//     is bounced into a Nack (back to the sender) and a RibGet is emitted
//     toward the RIB.
//   - RibReply: installs the binding into st, then the packet is consumed
//     (it is never re-emitted).
//   - anything else: dropped.
func SwitchPipeline(batch pipeline.Batch[*gdp.Packet], st *store.Store, self Identity, ribEndpoint gdp.Endpoint, logger *slog.Logger) pipeline.Batch[*gdp.Packet] {
	var forward, ribReply, other []*gdp.Packet
	for _, pkt := range batch.Items() {
		switch pkt.Action() {
		case gdp.ActionForward:
			forward = append(forward, pkt)
		case gdp.ActionRibReply:
			ribReply = append(ribReply, pkt)
		default:
			other = append(other, pkt)
		}
	}

	forwardOut := forwardStage(pipeline.Of(forward), st, self, ribEndpoint, logger)
	ribReplyOut := ribReplyStage(pipeline.Of(ribReply), st, logger)
	otherOut := dropAndRelease(pipeline.Of(other), logger)

	merged := pipeline.Merge(forwardOut, ribReplyOut, otherOut)
	return pipeline.WithDropped(merged.Items(), merged.Dropped()+batch.Dropped())
}

// dropAndRelease is the default arm for an action this role does not
// handle: the packet is dropped and its mbuf returned to the pool rather
// than leaked (spec §5: "drop returns [the mbuf] to the pool").
func dropAndRelease(b pipeline.Batch[*gdp.Packet], logger *slog.Logger) pipeline.Batch[*gdp.Packet] {
	return pipeline.Drop(b.Items(), func(pkt *gdp.Packet) {
		logger.Debug("dropping packet with unhandled action", slog.String("action", pkt.Action().String()))
		pkt.Release()
	})
}

func forwardStage(b pipeline.Batch[*gdp.Packet], st *store.Store, self Identity, ribEndpoint gdp.Endpoint, logger *slog.Logger) pipeline.Batch[*gdp.Packet] {
	b = pipeline.Filter(b, func(pkt *gdp.Packet) bool {
		if pkt.TTL() == 0 {
			logger.Debug("dropping packet with expired ttl", slog.String("dst", pkt.Dst().String()))
			pkt.Release()
			return false
		}
		return true
	})

	hitMiss := map[bool]pipeline.Stage[*gdp.Packet]{
		true: func(g pipeline.Batch[*gdp.Packet]) pipeline.Batch[*gdp.Packet] {
			return pipeline.Map(g, func(pkt *gdp.Packet) (*gdp.Packet, error) {
				dst, ok := FindDestination(st, pkt.Dst())
				if !ok {
					// A concurrent eviction between the group_by key lookup
					// and this rewrite; treat it the same as a miss would
					// have been handled, by dropping -- the sender's own
					// retransmit (or the RIB staying authoritative) recovers
					// this, matching the no-retry, no-ordering guarantees in
					// spec §5.
					pkt.Release()
					return nil, gdp.ErrInvalidDestination
				}
				if err := ForwardGDP(pkt, dst, self.Name); err != nil {
					return nil, err
				}
				return pkt, nil
			})
		},
	}

	out := pipeline.GroupBy(b, func(pkt *gdp.Packet) bool {
		_, ok := FindDestination(st, pkt.Dst())
		return ok
	}, hitMiss, func(miss pipeline.Batch[*gdp.Packet]) pipeline.Batch[*gdp.Packet] {
		return missStage(miss, self, ribEndpoint)
	})

	return out
}

func missStage(miss pipeline.Batch[*gdp.Packet], self Identity, ribEndpoint gdp.Endpoint) pipeline.Batch[*gdp.Packet] {
	queries := make([]*gdp.Packet, 0, miss.Len())
	for _, pkt := range miss.Items() {
		query, err := rib.CreateRIBRequest(pkt.Dst(), self.Name, self.Endpoint, ribEndpoint)
		if err == nil {
			queries = append(queries, query)
		}
	}

	bounced := pipeline.Map(miss, func(pkt *gdp.Packet) (*gdp.Packet, error) {
		if err := BounceGDP(pkt); err != nil {
			return nil, err
		}
		return pkt, nil
	})

	return pipeline.Emit(bounced, func() []*gdp.Packet { return queries })
}

func ribReplyStage(b pipeline.Batch[*gdp.Packet], st *store.Store, logger *slog.Logger) pipeline.Batch[*gdp.Packet] {
	b = pipeline.ForEach(b, func(pkt *gdp.Packet) error {
		return rib.HandleRIBReply(pkt, st)
	}, func(pkt *gdp.Packet, err error) {
		logger.Warn("rib reply installation failed", slog.String("key", pkt.Dst().String()), slog.String("error", err.Error()))
	})
	// RibReply packets are consumed, never forwarded (spec §4.3); their
	// mbufs go back to the pool here rather than leaking.
	return pipeline.Drop(b.Items(), func(pkt *gdp.Packet) { pkt.Release() })
}

// FindDestination looks up name in st, returning the resolved next hop and
// whether the lookup hit (spec §4.3: "group_by(dst ∈ forwarding_table)").
func FindDestination(st *store.Store, name gdp.Name) (netip.Addr, bool) {
	return st.Lookup(name)
}
