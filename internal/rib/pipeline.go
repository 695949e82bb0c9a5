package rib

import (
	"log/slog"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/pipeline"
	"github.com/dantte-lp/gdp-router/internal/store"
)

// Pipeline dispatches a batch of parsed, decrypted GDP packets received by
// the RIB role: a RibGet is answered in place by HandleRIBQuery; anything
// else is dropped (spec §4.3: "rib_pipeline").
func Pipeline(batch pipeline.Batch[*gdp.Packet], st *store.Store, logger *slog.Logger) pipeline.Batch[*gdp.Packet] {
	var ribGet, other []*gdp.Packet
	for _, pkt := range batch.Items() {
		switch pkt.Action() {
		case gdp.ActionRibGet:
			ribGet = append(ribGet, pkt)
		default:
			other = append(other, pkt)
		}
	}

	ribGetOut := pipeline.Replace(pipeline.Of(ribGet), func(pkt *gdp.Packet) (*gdp.Packet, error) {
		reply, err := HandleRIBQuery(pkt, st)
		if err != nil {
			logger.Debug("rib query dropped", slog.String("error", err.Error()))
			pkt.Release()
		}
		return reply, err
	})

	otherOut := pipeline.Drop(other, func(pkt *gdp.Packet) {
		logger.Debug("dropping packet with unhandled action", slog.String("action", pkt.Action().String()))
		pkt.Release()
	})

	merged := pipeline.Merge(ribGetOut, otherOut)
	return pipeline.WithDropped(merged.Items(), merged.Dropped()+batch.Dropped())
}
