package ccnpoison

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/slices"
)

// TraceInst is one traced event
type TraceInst struct {
	TraceTime string  `json:"time" yaml:"time"`
	Kind      string  `json:"kind" yaml:"kind"`
	Entity    int     `json:"entity" yaml:"entity"`
	Payload   float64 `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NameType is a an entry in a dictionary created for a trace
// that maps entity id numbers to a (name,type) pair
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers the events of every trial of an experiment, keyed by
// sweep point and trial, for post-run analysis.  It is safe for use by the
// concurrently running sweep points of one experiment.
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each entity id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, by TraceID
	Traces map[string][]TraceInst `json:"traces" yaml:"traces"`

	mu sync.Mutex
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[string][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// TraceID names the trace of one trial of one sweep point
func TraceID(label string, trial int) string {
	return fmt.Sprintf("%s/%d", label, trial)
}

// AddEvent creates a record of the event and stores it under traceID
func (tm *TraceManager) AddEvent(traceID string, ev Event) {
	// return if we aren't using the trace manager
	if !tm.Active() {
		return
	}
	trace := TraceInst{TraceTime: strconv.FormatFloat(ev.Time, 'f', -1, 64), Kind: ev.Kind.String(), Entity: ev.Entity}
	if ev.HasPayload {
		trace.Payload = ev.Payload
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.Traces[traceID] = append(tm.Traces[traceID], trace)
}

// Handler returns an EventHandler that traces every event under traceID
func (tm *TraceManager) Handler(traceID string) EventHandler {
	return func(ev Event) {
		tm.AddEvent(traceID, ev)
	}
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file.
// Sweep points share entity numbering.  When a sweep over the topology gives an id
// different names at different points, every name is kept, joined with '|'.
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if !tm.Active() {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	prev, present := tm.NameByID[id]
	if !present {
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
		return
	}
	if !slices.Contains(strings.Split(prev.Name, "|"), name) {
		prev.Name += "|" + name
		if !slices.Contains(strings.Split(prev.Type, "|"), objDesc) {
			prev.Type += "|" + objDesc
		}
		tm.NameByID[id] = prev
	}
}

// Len is the number of events traced under traceID
func (tm *TraceManager) Len(traceID string) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.Traces[traceID])
}

// Discard drops the trace of traceID, used for trials whose results were not kept
func (tm *TraceManager) Discard(traceID string) {
	if !tm.Active() {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.Traces, traceID)
}

// WriteToFile stores the traces to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
// Nothing is written when the manager is not in use.
func (tm *TraceManager) WriteToFile(filename string) (bool, error) {
	if !tm.Active() {
		return false, nil
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	snapshot := struct {
		InUse    bool                   `json:"inuse" yaml:"inuse"`
		ExpName  string                 `json:"expname" yaml:"expname"`
		NameByID map[int]NameType       `json:"namebyid" yaml:"namebyid"`
		Traces   map[string][]TraceInst `json:"traces" yaml:"traces"`
	}{tm.InUse, tm.ExpName, tm.NameByID, tm.Traces}

	if err := writeSerialized(filename, snapshot); err != nil {
		return false, err
	}
	return true, nil
}
