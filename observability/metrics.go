package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"swapnet/core/events"
)

var (
	eventCounterOnce sync.Once
	eventCounterReg  *EventCounter
)

// EventCounter is an events.Emitter that counts every emitted engine event by
// type, then forwards to an optional downstream emitter. Wiring it between
// the engines and the subscriber chain gives operational visibility without
// touching engine code.
type EventCounter struct {
	counts *prometheus.CounterVec
	next   events.Emitter
}

// Events returns the lazily-initialised singleton counter registered with the
// default prometheus registry.
func Events() *EventCounter {
	eventCounterOnce.Do(func() {
		eventCounterReg = &EventCounter{
			counts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swapnet",
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Total engine events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventCounterReg.counts)
	})
	return eventCounterReg
}

// Forward sets the downstream emitter and returns the counter for chaining.
func (c *EventCounter) Forward(next events.Emitter) *EventCounter {
	c.next = next
	return c
}

// Emit implements events.Emitter.
func (c *EventCounter) Emit(event events.Event) {
	if event == nil {
		return
	}
	c.counts.WithLabelValues(event.EventType()).Inc()
	if c.next != nil {
		c.next.Emit(event)
	}
}
