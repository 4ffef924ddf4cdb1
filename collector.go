package ccnpoison

// collector.go holds the EventCollector, the per-trial counting state that
// every event of a trial passes through.  Bucketed counts are staged inside the
// collector for the whole trial and handed to the aggregators only when the
// trial completes, so a trial that fails or is cancelled never reaches them.

import (
	"fmt"
	"math"
)

// FlipPolicy selects what moves the collector from one histogram bucket to the next
type FlipPolicy int

const (
	// TimerFlip places every event in bucket floor(t/width)
	TimerFlip FlipPolicy = iota

	// EventFlip advances one bucket when a delivery event arrives at least
	// one width after the previous advance
	EventFlip
)

var fpToStr map[FlipPolicy]string = map[FlipPolicy]string{TimerFlip: "timer", EventFlip: "event"}
var strToFP map[string]FlipPolicy = map[string]FlipPolicy{"timer": TimerFlip, "event": EventFlip, "": TimerFlip}

func (fp FlipPolicy) String() string {
	return fpToStr[fp]
}

// FlipPolicyFromStr parses a policy name; the empty string selects TimerFlip
func FlipPolicyFromStr(name string) (FlipPolicy, error) {
	fp, present := strToFP[name]
	if !present {
		return TimerFlip, fmt.Errorf("unknown flip policy %q", name)
	}
	return fp, nil
}

// BucketCount is the number of buckets of the given width needed to cover [0, horizon]
func BucketCount(horizon, width float64) int {
	n := int(math.Ceil(horizon / width))
	// ceil can overshoot by one when horizon/width carries rounding error
	if n > 1 && float64(n-1)*width >= horizon {
		n--
	}
	if n < 1 {
		n = 1
	}
	return n
}

type kindCounts [NumEventKinds]int64

// EventCollector counts the events of the trial in progress
type EventCollector struct {
	horizon  float64
	width    float64
	policy   FlipPolicy
	nbuckets int

	trial    int
	totals   kindCounts
	byEntity map[int]*kindCounts

	// events counted since the last fold into buckets
	inflight kindCounts
	buckets  []kindCounts
	cursor   int
	lastFlip float64

	lastTime float64
	seen     bool
	finished bool

	// first stopping sample per consumer
	stops map[int]float64

	violation error
}

// CreateEventCollector is a constructor.  horizon and width must be positive.
func CreateEventCollector(horizon, width float64, policy FlipPolicy) *EventCollector {
	if !(horizon > 0.0) || !(width > 0.0) {
		panic("event collector needs a positive horizon and bucket width")
	}
	c := new(EventCollector)
	c.horizon = horizon
	c.width = width
	c.policy = policy
	c.nbuckets = BucketCount(horizon, width)
	c.buckets = make([]kindCounts, c.nbuckets)
	c.byEntity = make(map[int]*kindCounts)
	c.stops = make(map[int]float64)
	return c
}

// SetTrial labels the collector's state with the trial ordinal, used in error reports
func (c *EventCollector) SetTrial(trial int) {
	c.trial = trial
}

// OnEvent counts ev.  It has the signature of an EventHandler.
// The first contract violation is remembered and all later events are ignored.
func (c *EventCollector) OnEvent(ev Event) {
	if c.violation != nil {
		return
	}
	switch {
	case c.finished:
		c.violation = violation(c.trial, "%s event at %g after the trial finished", ev.Kind, ev.Time)
		return
	case !ev.Kind.valid():
		c.violation = violation(c.trial, "unknown event kind %d", int(ev.Kind))
		return
	case ev.Time < 0.0 || ev.Time > c.horizon:
		c.violation = violation(c.trial, "%s event at %g outside [0, %g]", ev.Kind, ev.Time, c.horizon)
		return
	case c.seen && ev.Time < c.lastTime:
		c.violation = violation(c.trial, "%s event at %g arrived after an event at %g", ev.Kind, ev.Time, c.lastTime)
		return
	}
	c.seen = true
	c.lastTime = ev.Time

	c.advance(ev)
	if c.violation != nil {
		return
	}

	c.inflight[ev.Kind]++
	c.totals[ev.Kind]++

	if ev.Entity != NoEntity {
		ec, present := c.byEntity[ev.Entity]
		if !present {
			ec = new(kindCounts)
			c.byEntity[ev.Entity] = ec
		}
		ec[ev.Kind]++
	}

	if ev.Kind == ConsumerStoppedOnGoodContent && ev.Entity != NoEntity {
		if _, present := c.stops[ev.Entity]; !present {
			sample := ev.Time
			if ev.HasPayload {
				sample = ev.Payload
			}
			c.stops[ev.Entity] = sample
		}
	}
}

// advance moves the bucket cursor as the policy demands before ev is counted,
// so the event that causes a flip lands in the bucket it opened
func (c *EventCollector) advance(ev Event) {
	switch c.policy {
	case TimerFlip:
		idx := c.bucketOf(ev.Time)
		if idx > c.cursor {
			c.fold()
			c.cursor = idx
		}
	case EventFlip:
		if !ev.Kind.isDelivery() || ev.Time-c.lastFlip < c.width {
			return
		}
		// an event at exactly the horizon stays in the last bucket
		if c.cursor+1 < c.nbuckets {
			c.fold()
			c.cursor++
		}
		c.lastFlip = ev.Time
	}
}

// bucketOf maps a time in [0, horizon] to its bucket; t == horizon maps to the last one
func (c *EventCollector) bucketOf(t float64) int {
	idx := int(math.Floor(t / c.width))
	if idx >= c.nbuckets {
		idx = c.nbuckets - 1
	}
	return idx
}

// fold moves the in-flight counts into the bucket under the cursor
func (c *EventCollector) fold() {
	if c.cursor < 0 || c.cursor >= c.nbuckets {
		c.violation = violation(c.trial, "bucket cursor %d outside [0, %d)", c.cursor, c.nbuckets)
		return
	}
	for kind := range c.inflight {
		c.buckets[c.cursor][kind] += c.inflight[kind]
		c.inflight[kind] = 0
	}
}

// FinishTrial folds whatever is still in flight into the bucket active at the
// end of the trial and closes the collector to further events.  The first
// violation seen during the trial, if any, is returned.
func (c *EventCollector) FinishTrial() error {
	if c.violation != nil {
		return c.violation
	}
	if c.finished {
		c.violation = violation(c.trial, "trial finished twice without a reset")
		return c.violation
	}
	c.fold()
	c.finished = true
	return c.violation
}

// ResetForNewTrial returns the collector to the state it had when constructed.
// Bucket storage is kept and zeroed.
func (c *EventCollector) ResetForNewTrial() {
	c.trial = 0
	c.totals = kindCounts{}
	c.inflight = kindCounts{}
	clear(c.byEntity)
	clear(c.stops)
	for idx := range c.buckets {
		c.buckets[idx] = kindCounts{}
	}
	c.cursor = 0
	c.lastFlip = 0.0
	c.lastTime = 0.0
	c.seen = false
	c.finished = false
	c.violation = nil
}

// Err returns the first violation of the trial, or nil
func (c *EventCollector) Err() error {
	return c.violation
}

// Finished is true once FinishTrial has run without error
func (c *EventCollector) Finished() bool {
	return c.finished
}

// Total is the number of events of the given kind seen this trial
func (c *EventCollector) Total(kind EventKind) int64 {
	return c.totals[kind]
}

// EntityCount is the number of events of the given kind attributed to entity this trial
func (c *EventCollector) EntityCount(entity int, kind EventKind) int64 {
	ec, present := c.byEntity[entity]
	if !present {
		return 0
	}
	return ec[kind]
}

// Buckets is the length of the bucket sequence
func (c *EventCollector) Buckets() int {
	return c.nbuckets
}

// BucketCounts returns the staged count of kind in bucket idx.  In-flight
// events are not included until they are folded.
func (c *EventCollector) BucketCounts(idx int, kind EventKind) int64 {
	return c.buckets[idx][kind]
}

// InFlight is the number of events of kind not yet folded into a bucket
func (c *EventCollector) InFlight(kind EventKind) int64 {
	return c.inflight[kind]
}

// StopSamples returns a copy of the first stopping sample recorded per consumer
func (c *EventCollector) StopSamples() map[int]float64 {
	rtn := make(map[int]float64, len(c.stops))
	for entity, sample := range c.stops {
		rtn[entity] = sample
	}
	return rtn
}
