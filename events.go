package ccnpoison

// events.go holds the vocabulary shared by the harness and the simulation
// engines that feed it: the kinds of events a trial emits, the event record
// itself, and the contract an engine satisfies to be driven trial by trial.

import (
	"context"
	"fmt"
)

// EventKind enumerates the observations an engine reports during a trial
type EventKind int

const (
	ContentDelivered EventKind = iota
	GoodContentDelivered
	BadContentDelivered
	BadContentInjected
	CacheHit
	CacheMiss
	ConsumerStoppedOnGoodContent

	// NumEventKinds is the number of kinds above, used to size per-kind arrays
	NumEventKinds
)

var ekToStr map[EventKind]string = map[EventKind]string{
	ContentDelivered:             "content",
	GoodContentDelivered:         "good-content",
	BadContentDelivered:          "bad-content",
	BadContentInjected:           "bad-injected",
	CacheHit:                     "cache-hit",
	CacheMiss:                    "cache-miss",
	ConsumerStoppedOnGoodContent: "stopped-on-good",
}

var strToEK map[string]EventKind = map[string]EventKind{}

func init() {
	for ek, name := range ekToStr {
		strToEK[name] = ek
	}
}

func (ek EventKind) String() string {
	name, present := ekToStr[ek]
	if !present {
		return fmt.Sprintf("event-kind(%d)", int(ek))
	}
	return name
}

// EventKindFromStr maps the printed name of an event kind back to the kind
func EventKindFromStr(name string) (EventKind, error) {
	ek, present := strToEK[name]
	if !present {
		return -1, fmt.Errorf("unknown event kind %q", name)
	}
	return ek, nil
}

// valid reports whether ek is one of the enumerated kinds
func (ek EventKind) valid() bool {
	return ek >= 0 && ek < NumEventKinds
}

// isDelivery is true for the kinds that report content reaching a consumer
func (ek EventKind) isDelivery() bool {
	return ek == ContentDelivered || ek == GoodContentDelivered || ek == BadContentDelivered
}

// NoEntity marks an event that is not attributed to any consumer or router
const NoEntity = -1

// Event is one observation made during a trial.
// Time is simulated seconds since the trial started.
type Event struct {
	Kind       EventKind
	Entity     int
	Time       float64
	Payload    float64
	HasPayload bool
}

// EventHandler receives every event of a trial, in non-decreasing time order
type EventHandler func(Event)

// Handle is one built trial instance of an engine
type Handle interface {
	// Endpoints is the number of consumers in the trial, the per-trial normalizer
	Endpoints() int

	// Tracked lists the consumers whose stopping times are sampled in this trial
	Tracked() []int

	// Subscribe adds a handler that sees every event emitted by the trial
	Subscribe(EventHandler)
}

// Namer is optionally implemented by a Handle that can name its entities for traces
type Namer interface {
	EntityName(id int) (name string, objDesc string)
	Entities() int
}

// Engine builds, runs and tears down trials.  A handle is never reused:
// every trial calls Build once and Destroy once.
type Engine interface {
	Build(sc *ScenarioConfig, trial int) (Handle, error)
	Run(ctx context.Context, h Handle, horizon float64) error
	Destroy(h Handle)
}

// EngineFactory returns an Engine with no state shared with other engines it returned
type EngineFactory func() Engine
