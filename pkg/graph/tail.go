package graph

import "github.com/sentinelgraph/sentinel/pkg/bus"

// recordTail appends ev to the recent-event tail the rule engine matches
// against (spec §4.4: "the recent event tail (bounded by the error
// window)"), trimming events older than the error window relative to ev's
// own timestamp. Callers must hold g.mu for writing.
func (g *Graph) recordTail(ev bus.Event) {
	g.tail = append(g.tail, ev)

	windowMs := g.windows.ErrorWindow.Milliseconds()
	if windowMs <= 0 {
		return
	}
	cutoff := ev.TsMs - windowMs
	i := 0
	for i < len(g.tail) && g.tail[i].TsMs < cutoff {
		i++
	}
	if i > 0 {
		g.tail = append([]bus.Event(nil), g.tail[i:]...)
		g.tailSeqStart += int64(i)
	}
}

// RecentEvents returns a copy of the event tail currently within the
// error window, for the rule engine's condition evaluation (spec §4.4).
func (g *Graph) RecentEvents() []bus.Event {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]bus.Event, len(g.tail))
	copy(out, g.tail)
	return out
}

// TailSince returns every tail event with an absolute sequence number >=
// since, plus the sequence number to pass as since on the next call. It
// is the hub-forwarding client's cursor into the tail (pkg/agent): the
// client polls rather than subscribing to a second bus consumer, per
// spec §4.1's single-consumer bus contract.
//
// If since names an event recordTail has already trimmed from the tail, forwarding
// silently resumes from the oldest retained event — acceptable since the
// forwarding filter is best-effort (spec §4.7 ships "edge-folded" events,
// not a guaranteed-delivery log).
func (g *Graph) TailSince(since int64) ([]bus.Event, int64) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if since < g.tailSeqStart {
		since = g.tailSeqStart
	}
	offset := since - g.tailSeqStart
	next := g.tailSeqStart + int64(len(g.tail))
	if offset < 0 || offset > int64(len(g.tail)) {
		return nil, next
	}

	out := make([]bus.Event, len(g.tail)-int(offset))
	copy(out, g.tail[offset:])
	return out, next
}
