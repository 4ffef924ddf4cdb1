package ccnpoison

import (
	"context"
	"errors"
	"fmt"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Results is the outcome of a whole experiment
type Results struct {
	ExpName    string         `json:"expname" yaml:"expname"`
	SweepParam string         `json:"sweepparam,omitempty" yaml:"sweepparam,omitempty"`
	Points     []*PointResult `json:"points" yaml:"points"`
	Sweep      []SweepRow     `json:"sweep" yaml:"sweep"`
}

// WriteToFile stores the Results to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (res *Results) WriteToFile(filename string) error {
	return writeSerialized(filename, *res)
}

// RunExperiment runs every sweep point of exp.  Points run concurrently on a
// pool of exp.Workers goroutines; each point gets its own engine from factory
// and its own runner, collector and aggregators.  Every point's scenario is
// validated before any trial runs.  A point whose scenario is invalid is
// reported with Invalid set and its ConfigurationError in Failures, and the
// other points run; when no point is valid the error of the first is returned.
//
// On cancellation the points that had completed, together with the partial
// result of those in progress, are returned with ctx.Err().  Any other
// fatal error from a point is returned with no results.
func RunExperiment(ctx context.Context, exp *ExperimentCfg, factory EngineFactory,
	logger zerolog.Logger, opts ...RunnerOption) (*Results, error) {

	values, err := exp.SweepValues()
	if err != nil {
		return nil, err
	}
	if exp.Sweep.Param != "" && !sweepable(CanonicalParam(exp.Sweep.Param)) {
		return nil, configErr("sweep.param", "%q cannot be swept", exp.Sweep.Param)
	}

	// scs holds nil where the point is invalid
	scs := make([]*ScenarioConfig, len(values))
	points := make([]*PointResult, len(values))
	var firstErr error
	valid := 0
	for idx, value := range values {
		sc, err := exp.PointConfig(value)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep point %s=%g: %w", exp.Sweep.Param, value, err)
			}
			points[idx] = invalidPoint(exp, value, err)
			logger.Warn().Err(err).Str("point", points[idx].Label).Msg("sweep point not run")
			continue
		}
		scs[idx] = sc
		valid++
	}
	if valid == 0 {
		return nil, firstErr
	}

	workers := exp.Workers
	if workers < 1 {
		workers = 1
	}
	logger = logger.With().Str("experiment", exp.ExpName).Logger()
	logger.Info().Int("points", valid).Int("invalid", len(values)-valid).Int("workers", workers).
		Str("sweep", exp.Sweep.Param).Msg("experiment starting")

	errs := make([]error, len(scs))

	// each task writes only its own index of points and errs
	wp := workerpool.New(workers)
	for idx, sc := range scs {
		if sc == nil {
			continue
		}
		idx, sc := idx, sc
		wp.Submit(func() {
			runner := CreateTrialRunner(factory(), logger, opts...)
			points[idx], errs[idx] = runner.RunSweepPoint(ctx, sc, sc.Trials)
		})
	}
	wp.StopWait()

	results := &Results{ExpName: exp.ExpName, SweepParam: CanonicalParam(exp.Sweep.Param)}

	var cancelled error
	for idx, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			cancelled = err
		default:
			logger.Error().Err(err).Str("point", scs[idx].Label()).Msg("experiment aborted")
			return nil, err
		}
	}

	for _, point := range points {
		if point != nil {
			results.Points = append(results.Points, point)
		}
	}
	results.Sweep = ReduceSweep(results.Points)
	return results, cancelled
}

// invalidPoint stands in for the results of a point whose scenario was rejected
func invalidPoint(exp *ExperimentCfg, value float64, err error) *PointResult {
	named := ScenarioConfig{Name: exp.Base.Name, SweepParam: CanonicalParam(exp.Sweep.Param), SweepValue: value}
	if named.Name == "" {
		named.Name = exp.ExpName
	}
	res := &PointResult{
		Label:            named.Label(),
		SweepParam:       named.SweepParam,
		SweepValue:       value,
		Horizon:          exp.Base.Horizon,
		Entities:         exp.Base.Entities(),
		ConfiguredTrials: exp.Base.Trials,
		Invalid:          true,
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, each := range merr.Errors {
			res.Failures = append(res.Failures, each.Error())
		}
	} else {
		res.Failures = append(res.Failures, err.Error())
	}
	return res
}
