package gdp

import "fmt"

// Action is the GDP header's action field (spec §3): a single byte
// identifying what a packet asks a node to do.
type Action uint8

const (
	// ActionNoop is the default/unknown action; packets with an
	// unrecognized action byte decode to ActionNoop for dispatch purposes
	// (spec §3: "malformed action bytes are not fatal").
	ActionNoop Action = 0

	// ActionPut stores application data under src's name (unused on the
	// forwarding hot path; reserved for completeness with the wire format).
	ActionPut Action = 1

	// ActionGet retrieves application data by name (unused on the
	// forwarding hot path; reserved for completeness with the wire format).
	ActionGet Action = 2

	// ActionRibGet is a name->address query sent to the RIB.
	ActionRibGet Action = 3

	// ActionRibReply is the RIB's answer to an ActionRibGet query.
	ActionRibReply Action = 4

	// ActionForward asks a switch to look up dst and forward the packet.
	ActionForward Action = 5

	// ActionNack is sent back to the originator of a Forward packet whose
	// destination could not be resolved.
	ActionNack Action = 6
)

// actionNames maps known action values to their wire-format names.
var actionNames = [...]string{
	ActionNoop:     "Noop",
	ActionPut:      "Put",
	ActionGet:      "Get",
	ActionRibGet:   "RibGet",
	ActionRibReply: "RibReply",
	ActionForward:  "Forward",
	ActionNack:     "Nack",
}

// String returns the human-readable name for the action, or "Unknown(N)"
// for any value outside the defined enumeration.
func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(a))
}

// decodeAction maps a raw wire byte to an Action. Per spec §3, unknown
// values decode to ActionNoop rather than failing -- action-byte
// malformation is not a fatal parse error.
func decodeAction(b byte) Action {
	switch Action(b) {
	case ActionNoop, ActionPut, ActionGet, ActionRibGet, ActionRibReply, ActionForward, ActionNack:
		return Action(b)
	default:
		return ActionNoop
	}
}
