package monitor

import "github.com/AnhTuIT04/SmartHomeServer/types"

// Aggregator merges the telemetry and control change streams of one
// sensor into a single live snapshot and decides when the merged
// snapshot is safe to forward.
//
// The first change absorbed after the aggregator starts only seeds the
// snapshot: a single-channel update right after subscribing is a
// partial, possibly stale picture (control fields still zero while
// telemetry already carries current values, or the reverse). Every
// later change forwards a copy of the merged snapshot.
//
// Not safe for concurrent use. The per-sensor pipeline funnels both
// streams through one goroutine, which is what keeps the priming flag
// and downstream admission free of races.
type Aggregator struct {
	reading *types.Reading
	forward func(types.Reading)
}

// NewAggregator creates an aggregator with a fresh snapshot. forward
// receives a copy of the merged reading for every post-priming change.
func NewAggregator(forward func(types.Reading)) *Aggregator {
	return &Aggregator{
		reading: types.NewReading(),
		forward: forward,
	}
}

// OnChange merges one raw partial update into the snapshot. Malformed
// fields degrade to the previous value rather than failing the update.
func (a *Aggregator) OnChange(raw []byte) {
	a.reading.Apply(raw)

	if !a.reading.Primed {
		a.reading.Primed = true
		return
	}

	if a.forward != nil {
		a.forward(*a.reading)
	}
}

// Primed reports whether the warm-up change has been absorbed.
func (a *Aggregator) Primed() bool {
	return a.reading.Primed
}
