// Package pipeline implements the declarative, action-dispatched batch
// combinators that the switch and RIB subsystems compose into their
// per-queue forwarding pipelines (spec §4.3). Operators are free functions
// parameterized over the batch's element type rather than Batch methods,
// since Go does not allow a method to introduce its own type parameter.
//
// Every operator returns a new Batch rather than mutating in place; the
// previous Batch's backing slice is never reused afterward by a well-behaved
// caller, so this does not add a meaningful allocation over an in-place
// design at the batch sizes a port queue poll yields.
package pipeline

// Batch is an ordered collection of items flowing through one pipeline
// stage, together with a running count of items dropped by prior stages
// (spec §4.3: "failed items are dropped and counted").
type Batch[T any] struct {
	items   []T
	dropped int
}

// Of constructs a Batch from items with no prior drops.
func Of[T any](items []T) Batch[T] {
	return Batch[T]{items: items}
}

// Items returns the batch's current elements.
func (b Batch[T]) Items() []T { return b.items }

// Len returns the number of elements currently in the batch.
func (b Batch[T]) Len() int { return len(b.items) }

// Dropped returns the cumulative number of elements dropped by every stage
// applied to this batch so far.
func (b Batch[T]) Dropped() int { return b.dropped }

// Map applies a fallible transform to every element. An element whose
// transform returns an error is dropped and counted; the source order of
// surviving elements is preserved (spec §4.3: "map(f)").
func Map[T any](b Batch[T], f func(T) (T, error)) Batch[T] {
	out := make([]T, 0, len(b.items))
	dropped := b.dropped
	for _, item := range b.items {
		v, err := f(item)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, v)
	}
	return Batch[T]{items: out, dropped: dropped}
}

// Drop discards every element of items, counting each as dropped, and
// returns an empty Batch. Useful as a group_by default arm that still wants
// to run per-item cleanup (e.g. returning a buffer to a pool) before
// discarding (spec §4.3: "a default arm _ is required").
func Drop[T any](items []T, cleanup func(T)) Batch[T] {
	if cleanup != nil {
		for _, item := range items {
			cleanup(item)
		}
	}
	return Batch[T]{dropped: len(items)}
}

// Filter retains only elements for which pred returns true; the rest are
// dropped and counted (spec §4.3: "filter(p)").
func Filter[T any](b Batch[T], pred func(T) bool) Batch[T] {
	out := make([]T, 0, len(b.items))
	dropped := b.dropped
	for _, item := range b.items {
		if pred(item) {
			out = append(out, item)
		} else {
			dropped++
		}
	}
	return Batch[T]{items: out, dropped: dropped}
}

// ForEach observes every element without modifying the batch. Errors
// returned by f are passed to onErr (typically a logger call) but do not
// remove the item from the batch (spec §4.3: "for_each(f) ... errors
// logged, item retained").
func ForEach[T any](b Batch[T], f func(T) error, onErr func(T, error)) Batch[T] {
	for _, item := range b.items {
		if err := f(item); err != nil && onErr != nil {
			onErr(item, err)
		}
	}
	return b
}

// Replace substitutes every element with the result of f, in the same
// position; an element whose replacement fails is dropped and counted
// (spec §4.3: "replace(f) ... original dropped on success"). Replace and Map
// share an implementation but are kept as distinct named operators because
// they answer different questions in the pipelines that use them: Map edits
// a packet in place (forward_gdp, bounce_gdp), Replace manufactures an
// entirely different packet to stand in for the original (handle_rib_query).
func Replace[T any](b Batch[T], f func(T) (T, error)) Batch[T] {
	return Map(b, f)
}

// Stage is a pipeline stage over a batch: any of this package's operators,
// or a caller-defined composition of them.
type Stage[T any] func(Batch[T]) Batch[T]

// GroupBy partitions the batch by key, routes each partition through its
// named subpipeline, and recombines the per-group outputs into a single
// batch (spec §4.3: "group_by(key, subpipelines) ... groups recombine for
// downstream operators"). defaultStage handles any key with no entry in
// stages; the spec requires this arm to exist (spec §4.3: "a default arm _
// is required").
//
// Recombination order is: the groups for the keys in stages, in map
// iteration order (unspecified for more than one key -- this is deliberate,
// since spec §5 only guarantees relative order within a group, not across
// groups), followed by the default group.
func GroupBy[T any, K comparable](b Batch[T], key func(T) K, stages map[K]Stage[T], defaultStage Stage[T]) Batch[T] {
	groups := make(map[K][]T, len(stages))
	var defaultItems []T

	for _, item := range b.items {
		k := key(item)
		if _, ok := stages[k]; ok {
			groups[k] = append(groups[k], item)
			continue
		}
		defaultItems = append(defaultItems, item)
	}

	out := Batch[T]{dropped: b.dropped}
	for k, stage := range stages {
		sub := stage(Batch[T]{items: groups[k]})
		out.items = append(out.items, sub.items...)
		out.dropped += sub.dropped
	}
	if defaultStage != nil {
		sub := defaultStage(Batch[T]{items: defaultItems})
		out.items = append(out.items, sub.items...)
		out.dropped += sub.dropped
	} else {
		out.dropped += len(defaultItems)
	}

	return out
}

// Merge concatenates multiple batches' items, preserving the order the
// batches are given in, and sums their dropped counts. Used to recombine
// partitions a caller split out itself (e.g. a closed-enum switch over an
// action field) without going through GroupBy's map-keyed dispatch.
func Merge[T any](batches ...Batch[T]) Batch[T] {
	var out Batch[T]
	for _, b := range batches {
		out.items = append(out.items, b.items...)
		out.dropped += b.dropped
	}
	return out
}

// WithDropped rebuilds a batch from items with an explicit dropped count,
// for callers that track drops outside the usual operator chain (e.g. a
// count carried in from the batch a partition was split from).
func WithDropped[T any](items []T, dropped int) Batch[T] {
	return Batch[T]{items: items, dropped: dropped}
}

// Emit appends newly constructed elements produced by gen to the batch,
// without consuming or otherwise touching the existing elements (spec
// §4.3: "emit(gen) -- inject newly constructed packets into the downstream
// stream").
func Emit[T any](b Batch[T], gen func() []T) Batch[T] {
	return Batch[T]{items: append(b.items, gen()...), dropped: b.dropped}
}

// Sender is the terminal sink a pipeline hands finished elements to (spec
// §4.3: "send(q) -- terminal; transmit on port queue").
type Sender[T any] interface {
	Send(T) error
}

// Send transmits every element of the batch through sender, in order. It
// stops and returns the first transmit error (spec §6: port queues have no
// in-pipeline buffering to absorb a stuck sender).
func Send[T any](b Batch[T], sender Sender[T]) error {
	for _, item := range b.items {
		if err := sender.Send(item); err != nil {
			return err
		}
	}
	return nil
}
