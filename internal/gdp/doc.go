// Package gdp implements the Global Data Plane packet codec: a
// name-addressed datagram format layered over Ethernet/IPv4/UDP, plus the
// forwarding-header rewrite primitives the switch and RIB pipelines use.
//
// Each protocol layer (Ethernet, IPv4, UDP, GDP) is a view over a shared
// *mbuf.Mbuf: it holds its envelope (the enclosing layer) and the absolute
// byte offset of its own header. Mutating a layer's fields writes directly
// into the mbuf; Reconcile re-derives any fields invalidated by an edit
// (lengths, checksums, the GDP magic), and ReconcileAll cascades that from
// the innermost layer outward before a packet is retransmitted.
package gdp
