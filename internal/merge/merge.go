// Package merge reconciles repeated reports of the same repair order into a
// single winning report per order id.
package merge

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/jstrand/roload/internal/parser"
)

// Engine folds a stream of parsed events into one winner per order id using
// last-write-wins on the event timestamp. A later report is a complete
// corrected snapshot, so the header and the entire parts list are replaced
// together; fields from two different reports are never combined.
type Engine struct {
	log     zerolog.Logger
	winners map[int]parser.Event
}

// New returns an empty Engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log, winners: make(map[int]parser.Event)}
}

// Apply folds one event into the engine. Events must be applied in document
// processing order: an event whose timestamp equals the stored winner's is
// discarded, so the earlier-processed report wins ties and the outcome is a
// deterministic function of that order.
func (e *Engine) Apply(ev parser.Event) {
	cur, ok := e.winners[ev.OrderID]
	if !ok {
		e.log.Debug().Int("order_id", ev.OrderID).Msg("seeing order for the first time")
		e.winners[ev.OrderID] = ev
		return
	}
	if !ev.Timestamp.After(cur.Timestamp) {
		e.log.Debug().
			Int("order_id", ev.OrderID).
			Time("kept", cur.Timestamp).
			Time("discarded", ev.Timestamp).
			Msg("discarding stale report")
		return
	}
	e.log.Debug().Int("order_id", ev.OrderID).Msg("replacing data for order")
	e.winners[ev.OrderID] = ev
}

// Len reports how many distinct orders the engine currently holds.
func (e *Engine) Len() int { return len(e.winners) }

// Snapshot returns the winning events sorted by order id.
func (e *Engine) Snapshot() []parser.Event {
	events := make([]parser.Event, 0, len(e.winners))
	for _, ev := range e.winners {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OrderID < events[j].OrderID })
	return events
}
