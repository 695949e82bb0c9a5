package rib_test

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/pipeline"
	"github.com/dantte-lp/gdp-router/internal/rib"
	"github.com/dantte-lp/gdp-router/internal/store"
)

func nameWithByte(b byte) gdp.Name {
	var n gdp.Name
	n[0] = b
	return n
}

var (
	ribEndpoint = gdp.Endpoint{
		MAC:  gdp.MACAddr{0x02, 0x00, 0x00, 0xFF, 0xFF, 0x00},
		IP:   netip.MustParseAddr("10.100.1.10"),
		Port: 27182,
	}
	switchEndpoint = gdp.Endpoint{
		MAC:  gdp.MACAddr{0x02, 0x00, 0x00, 0xAA, 0xAA, 0x01},
		IP:   netip.MustParseAddr("10.0.0.5"),
		Port: 27182,
	}
)

func TestCreateRIBRequestAddressesTheRIB(t *testing.T) {
	t.Parallel()

	key := nameWithByte(0xAA)
	self := nameWithByte(0x01)

	query, err := rib.CreateRIBRequest(key, self, switchEndpoint, ribEndpoint)
	if err != nil {
		t.Fatalf("CreateRIBRequest: %v", err)
	}
	defer query.Release()

	if query.Action() != gdp.ActionRibGet {
		t.Errorf("Action() = %v, want RibGet", query.Action())
	}
	if query.Dst() != key {
		t.Errorf("Dst() = %x, want %x (the queried key)", query.Dst(), key)
	}

	udp := query.Deparse()
	ip := udp.Envelope()
	if ip.Dst() != ribEndpoint.IP {
		t.Errorf("ip.Dst() = %v, want %v", ip.Dst(), ribEndpoint.IP)
	}
	if udp.DstPort() != ribEndpoint.Port {
		t.Errorf("udp.DstPort() = %d, want %d", udp.DstPort(), ribEndpoint.Port)
	}
}

func TestHandleRIBQueryHitBuildsReply(t *testing.T) {
	t.Parallel()

	st := store.New()
	key := nameWithByte(0xAA)
	want := netip.MustParseAddr("10.0.0.2")
	st.Insert(key, want, store.Infinite)

	query, err := rib.CreateRIBRequest(key, nameWithByte(0x01), switchEndpoint, ribEndpoint)
	if err != nil {
		t.Fatalf("CreateRIBRequest: %v", err)
	}

	reply, err := rib.HandleRIBQuery(query, st)
	if err != nil {
		t.Fatalf("HandleRIBQuery: %v", err)
	}
	defer reply.Release()

	if reply.Action() != gdp.ActionRibReply {
		t.Errorf("Action() = %v, want RibReply", reply.Action())
	}
	if reply.Dst() != key {
		t.Errorf("Dst() = %x, want %x", reply.Dst(), key)
	}

	udp := reply.Deparse()
	ip := udp.Envelope()
	if ip.Src() != ribEndpoint.IP {
		t.Errorf("ip.Src() = %v, want RIB's address %v", ip.Src(), ribEndpoint.IP)
	}
	if ip.Dst() != switchEndpoint.IP {
		t.Errorf("ip.Dst() = %v, want querying switch's address %v", ip.Dst(), switchEndpoint.IP)
	}
	if udp.SrcPort() != ribEndpoint.Port || udp.DstPort() != switchEndpoint.Port {
		t.Errorf("udp ports = %d/%d, want swapped %d/%d", udp.SrcPort(), udp.DstPort(), ribEndpoint.Port, switchEndpoint.Port)
	}

	data, err := reply.Data()
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	got, ok := netip.AddrFromSlice(data)
	if !ok || got.As4() != want.As4() {
		t.Errorf("reply value = %v, want %v", data, want)
	}
}

func TestHandleRIBQueryMissReturnsErrBindingNotFound(t *testing.T) {
	t.Parallel()

	st := store.New()
	query, err := rib.CreateRIBRequest(nameWithByte(0xBB), nameWithByte(0x01), switchEndpoint, ribEndpoint)
	if err != nil {
		t.Fatalf("CreateRIBRequest: %v", err)
	}
	defer query.Release()

	_, err = rib.HandleRIBQuery(query, st)
	if !errors.Is(err, rib.ErrBindingNotFound) {
		t.Fatalf("got %v, want ErrBindingNotFound", err)
	}
}

func TestHandleRIBReplyInstallsBinding(t *testing.T) {
	t.Parallel()

	st := store.New()
	key := nameWithByte(0xAA)
	want := netip.MustParseAddr("10.0.0.2")

	reply, err := gdp.Build(ribEndpoint, switchEndpoint)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer reply.Release()

	reply.SetAction(gdp.ActionRibReply)
	reply.SetDst(key)
	v := want.As4()
	if err := reply.SetData(v[:]); err != nil {
		t.Fatalf("SetData: %v", err)
	}

	if err := rib.HandleRIBReply(reply, st); err != nil {
		t.Fatalf("HandleRIBReply: %v", err)
	}

	got, ok := st.Lookup(key)
	if !ok || got != want {
		t.Fatalf("store.Lookup() = %v, %v, want %v, true", got, ok, want)
	}
}

func TestPipelineAnswersRibGetEndToEnd(t *testing.T) {
	t.Parallel()

	st := store.New()
	key := nameWithByte(0xAA)
	want := netip.MustParseAddr("10.0.0.2")
	st.Insert(key, want, store.Infinite)

	query, err := rib.CreateRIBRequest(key, nameWithByte(0x01), switchEndpoint, ribEndpoint)
	if err != nil {
		t.Fatalf("CreateRIBRequest: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := rib.Pipeline(pipeline.Of([]*gdp.Packet{query}), st, logger)

	if out.Len() != 1 {
		t.Fatalf("out.Len() = %d, want 1", out.Len())
	}
	reply := out.Items()[0]
	defer reply.Release()

	if reply.Action() != gdp.ActionRibReply {
		t.Errorf("Action() = %v, want RibReply", reply.Action())
	}
}

func TestPipelineDropsUnknownAction(t *testing.T) {
	t.Parallel()

	st := store.New()
	pkt, err := gdp.Build(switchEndpoint, ribEndpoint)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Pipeline releases unmatched-action packets itself; no defer here.
	pkt.SetAction(gdp.ActionPut)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := rib.Pipeline(pipeline.Of([]*gdp.Packet{pkt}), st, logger)

	if out.Len() != 0 {
		t.Fatalf("out.Len() = %d, want 0", out.Len())
	}
}
