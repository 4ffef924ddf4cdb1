package ccnpoison

import (
	"context"
	"errors"
	"sync"
)

// scriptedHandle replays a fixed list of events
type scriptedHandle struct {
	trial     int
	endpoints int
	tracked   []int
	events    []Event
	handlers  []EventHandler
}

func (h *scriptedHandle) Endpoints() int {
	return h.endpoints
}

func (h *scriptedHandle) Tracked() []int {
	return h.tracked
}

func (h *scriptedHandle) Subscribe(fn EventHandler) {
	h.handlers = append(h.handlers, fn)
}

// scriptedEngine builds trials from a script function.  Trials listed in
// failBuild or failRun fail in that phase; cancelAt, when set, cancels the
// context half way through that trial.
type scriptedEngine struct {
	script    func(sc *ScenarioConfig, trial int) []Event
	tracked   func(sc *ScenarioConfig, trial int) []int
	endpoints int

	failBuild map[int]bool
	failRun   map[int]bool

	cancelAt int
	cancel   context.CancelFunc

	mu        sync.Mutex
	built     int
	destroyed int
}

func createScriptedEngine(script func(sc *ScenarioConfig, trial int) []Event) *scriptedEngine {
	return &scriptedEngine{script: script, cancelAt: -1, failBuild: map[int]bool{}, failRun: map[int]bool{}}
}

var errScripted = errors.New("scripted failure")

func (se *scriptedEngine) Build(sc *ScenarioConfig, trial int) (Handle, error) {
	if se.failBuild[trial] {
		return nil, errScripted
	}
	se.mu.Lock()
	se.built++
	se.mu.Unlock()

	h := &scriptedHandle{trial: trial, endpoints: sc.Entities(), events: se.script(sc, trial)}
	if se.endpoints > 0 {
		h.endpoints = se.endpoints
	}
	if se.tracked != nil {
		h.tracked = se.tracked(sc, trial)
	} else {
		for id := 0; id < sc.Entities(); id++ {
			h.tracked = append(h.tracked, id)
		}
	}
	return h, nil
}

func (se *scriptedEngine) Run(ctx context.Context, h Handle, horizon float64) error {
	sh := h.(*scriptedHandle)
	if se.failRun[sh.trial] {
		// deliver something first so a failed trial has events to leak
		for _, fn := range sh.handlers {
			fn(Event{Kind: ContentDelivered, Entity: 0, Time: 0.5})
		}
		return errScripted
	}
	for idx, ev := range sh.events {
		if sh.trial == se.cancelAt && idx == len(sh.events)/2 {
			se.cancel()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, fn := range sh.handlers {
			fn(ev)
		}
	}
	return nil
}

func (se *scriptedEngine) Destroy(h Handle) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.destroyed++
}

// testScenario is a valid scenario of the given horizon, bucket width and consumer count
func testScenario(horizon, width float64, consumers int) *ScenarioConfig {
	exp := CreateExperimentCfg("test")
	sc := exp.Base.Copy()
	sc.Horizon = horizon
	sc.BucketWidth = width
	sc.Topology.Consumers = consumers
	return sc
}

// deliveries returns one ContentDelivered event per time, from entity 0
func deliveries(times ...float64) []Event {
	evs := make([]Event, 0, len(times))
	for _, t := range times {
		evs = append(evs, Event{Kind: ContentDelivered, Entity: 0, Time: t})
	}
	return evs
}
