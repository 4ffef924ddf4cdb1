package ccnpoison

// runner.go holds the TrialRunner, which drives the independent trials of one
// sweep point through an Engine and accumulates what they report.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// PointResult holds everything learned at one sweep point
type PointResult struct {
	Label      string  `json:"label" yaml:"label"`
	SweepParam string  `json:"sweepparam,omitempty" yaml:"sweepparam,omitempty"`
	SweepValue float64 `json:"sweepvalue" yaml:"sweepvalue"`
	Horizon    float64 `json:"horizon" yaml:"horizon"`
	Entities   int     `json:"entities" yaml:"entities"`

	ConfiguredTrials int `json:"configuredtrials" yaml:"configuredtrials"`
	EffectiveTrials  int `json:"effectivetrials" yaml:"effectivetrials"`

	// event counts summed over every effective trial, indexed by EventKind
	Totals [NumEventKinds]int64 `json:"totals" yaml:"totals"`

	Histogram    []BucketStat `json:"histogram,omitempty" yaml:"histogram,omitempty"`
	Distribution []SlotStat   `json:"distribution,omitempty" yaml:"distribution,omitempty"`

	// messages of the trials left out of the statistics
	Failures []string `json:"failures,omitempty" yaml:"failures,omitempty"`

	// true when the point was cut short by cancellation
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	// true when the point's configuration was rejected and none of its trials ran
	Invalid bool `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

// TrialHook is called after every trial with the trial's error, nil on success
type TrialHook func(sc *ScenarioConfig, trial int, err error)

// TrialRunner runs the trials of a sweep point one after the other
type TrialRunner struct {
	engine  Engine
	logger  zerolog.Logger
	metrics *Metrics
	trace   *TraceManager
	hook    TrialHook
}

// RunnerOption configures a TrialRunner
type RunnerOption func(*TrialRunner)

// WithMetrics counts trials and events into m
func WithMetrics(m *Metrics) RunnerOption {
	return func(tr *TrialRunner) {
		tr.metrics = m
	}
}

// WithTrace records every event of every trial into tm
func WithTrace(tm *TraceManager) RunnerOption {
	return func(tr *TrialRunner) {
		tr.trace = tm
	}
}

// WithTrialHook calls hook after every trial
func WithTrialHook(hook TrialHook) RunnerOption {
	return func(tr *TrialRunner) {
		tr.hook = hook
	}
}

// CreateTrialRunner is a constructor
func CreateTrialRunner(engine Engine, logger zerolog.Logger, opts ...RunnerOption) *TrialRunner {
	tr := new(TrialRunner)
	tr.engine = engine
	tr.logger = logger.With().Str("component", "trial-runner").Logger()
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// RunSweepPoint runs trialCount trials of sc and returns the normalized results.
//
// A trial whose engine fails to build or run is left out and reported in
// PointResult.Failures; the point goes on with the next trial.  A configuration
// problem or an aggregation invariant violation stops the point and is returned.
// When ctx is cancelled the trial in progress is abandoned, and the results of
// the trials completed before it are returned together with ctx.Err().
func (tr *TrialRunner) RunSweepPoint(ctx context.Context, sc *ScenarioConfig, trialCount int) (*PointResult, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if trialCount <= 0 {
		return nil, configErr("trials", "must be positive, got %d", trialCount)
	}

	logger := tr.logger.With().Str("point", sc.Label()).Logger()
	entities := sc.Entities()

	collector := CreateEventCollector(sc.Horizon, sc.BucketWidth, sc.FlipPolicy())
	hist := CreateHistogramAggregator(sc.Horizon, sc.BucketWidth)
	dist := CreateDistributionAggregator(entities)

	res := &PointResult{
		Label:            sc.Label(),
		SweepParam:       sc.SweepParam,
		SweepValue:       sc.SweepValue,
		Horizon:          sc.Horizon,
		Entities:         entities,
		ConfiguredTrials: trialCount,
	}
	var failures *multierror.Error
	start := time.Now()

	for trial := 0; trial < trialCount; trial++ {
		if err := ctx.Err(); err != nil {
			return tr.partial(res, hist, dist, failures, logger), err
		}

		collector.ResetForNewTrial()
		collector.SetTrial(trial)

		tracked, err := tr.runTrial(ctx, sc, trial, collector)
		if ctxErr := ctx.Err(); ctxErr != nil {
			tr.trace.Discard(TraceID(sc.Label(), trial))
			tr.metrics.TrialDone(OutcomeCancelled)
			logger.Info().Int("trial", trial).Msg("trial abandoned on cancellation")
			return tr.partial(res, hist, dist, failures, logger), ctxErr
		}

		var tee *TrialExecutionError
		switch {
		case err == nil:
		case errors.As(err, &tee):
			tr.trace.Discard(TraceID(sc.Label(), trial))
			failures = multierror.Append(failures, err)
			tr.metrics.TrialDone(OutcomeFailed)
			logger.Warn().Err(err).Int("trial", trial).Msg("trial excluded")
			tr.callHook(sc, trial, err)
			continue
		default:
			logger.Error().Err(err).Int("trial", trial).Msg("sweep point aborted")
			return nil, err
		}

		if err := hist.Commit(collector); err != nil {
			return nil, err
		}
		if err := dist.Commit(trial, tracked, collector.StopSamples()); err != nil {
			return nil, err
		}
		tr.metrics.TrialDone(OutcomeCompleted)
		tr.callHook(sc, trial, nil)
		logger.Debug().Int("trial", trial).
			Int64("delivered", collector.Total(ContentDelivered)).
			Int64("bad", collector.Total(BadContentDelivered)).
			Msg("trial completed")
	}

	if err := tr.finalize(res, hist, dist, failures); err != nil {
		return nil, err
	}
	tr.metrics.PointDone()
	logger.Info().
		Int("effective", res.EffectiveTrials).
		Int("configured", res.ConfiguredTrials).
		Dur("elapsed", time.Since(start)).
		Msg("sweep point done")
	return res, nil
}

// runTrial builds, runs and destroys one trial, feeding its events to collector.
// The consumers tracked in the trial are returned.
func (tr *TrialRunner) runTrial(ctx context.Context, sc *ScenarioConfig, trial int, collector *EventCollector) ([]int, error) {
	h, err := tr.engine.Build(sc, trial)
	if err != nil {
		return nil, &TrialExecutionError{Trial: trial, Phase: "build", Err: err}
	}
	defer tr.engine.Destroy(h)

	if h.Endpoints() != sc.Entities() {
		return nil, &TrialExecutionError{Trial: trial, Phase: "build",
			Err: fmt.Errorf("engine built %d consumers, scenario has %d", h.Endpoints(), sc.Entities())}
	}
	tracked := h.Tracked()

	h.Subscribe(collector.OnEvent)
	if tr.trace.Active() {
		tr.nameEntities(h)
		h.Subscribe(tr.trace.Handler(TraceID(sc.Label(), trial)))
	}
	if tr.metrics != nil {
		h.Subscribe(tr.metrics.ObserveEvent)
	}

	if err := tr.engine.Run(ctx, h, sc.Horizon); err != nil {
		return nil, &TrialExecutionError{Trial: trial, Phase: "run", Err: err}
	}
	return tracked, collector.FinishTrial()
}

// nameEntities copies entity names into the trace dictionary when the handle can supply them
func (tr *TrialRunner) nameEntities(h Handle) {
	namer, ok := h.(Namer)
	if !ok {
		return
	}
	for id := 0; id < namer.Entities(); id++ {
		name, objDesc := namer.EntityName(id)
		tr.trace.AddName(id, name, objDesc)
	}
}

func (tr *TrialRunner) callHook(sc *ScenarioConfig, trial int, err error) {
	if tr.hook != nil {
		tr.hook(sc, trial, err)
	}
}

// finalize normalizes the aggregators into res
func (tr *TrialRunner) finalize(res *PointResult, hist *HistogramAggregator, dist *DistributionAggregator,
	failures *multierror.Error) error {

	res.EffectiveTrials = hist.Trials()
	if failures != nil {
		for _, err := range failures.Errors {
			res.Failures = append(res.Failures, err.Error())
		}
	}
	if res.EffectiveTrials == 0 {
		tr.logger.Warn().Str("point", res.Label).Int("configured", res.ConfiguredTrials).Msg("no trial completed")
		return nil
	}
	stats, err := hist.Finalize(res.EffectiveTrials, res.Entities)
	if err != nil {
		return err
	}
	res.Histogram = stats
	res.Totals = hist.Totals()
	res.Distribution = dist.Finalize()
	return nil
}

// partial finalizes what the trials completed before a cancellation produced
func (tr *TrialRunner) partial(res *PointResult, hist *HistogramAggregator, dist *DistributionAggregator,
	failures *multierror.Error, logger zerolog.Logger) *PointResult {

	res.Partial = true
	if err := tr.finalize(res, hist, dist, failures); err != nil {
		logger.Error().Err(err).Msg("partial results discarded")
		return nil
	}
	return res
}
