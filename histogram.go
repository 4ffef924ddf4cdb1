package ccnpoison

import (
	"encoding/json"
	"math"
	"strconv"
)

// Percentage is a ratio expressed in percent that may have no value,
// which is the case when its denominator is zero
type Percentage struct {
	Value   float64
	Defined bool
}

// percentOf computes 100*num/den, undefined when den is zero
func percentOf(num, den float64) Percentage {
	if den == 0.0 {
		return Percentage{}
	}
	return Percentage{Value: 100.0 * num / den, Defined: true}
}

func (p Percentage) String() string {
	if !p.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(p.Value, 'f', 2, 64) + "%"
}

// MarshalYAML writes an undefined percentage as null
func (p Percentage) MarshalYAML() (any, error) {
	if !p.Defined {
		return nil, nil
	}
	return roundFloat(p.Value, 4), nil
}

// MarshalJSON writes an undefined percentage as null
func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(roundFloat(p.Value, 4))
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// BucketStat is the final statistic of one histogram bucket
type BucketStat struct {
	Index int     `json:"index" yaml:"index"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`

	// summed counts over all committed trials, indexed by EventKind
	Sums [NumEventKinds]int64 `json:"sums" yaml:"sums"`

	// Sums divided by trials*entities
	Means [NumEventKinds]float64 `json:"means" yaml:"means"`

	BadPct  Percentage `json:"badpct" yaml:"badpct"`
	GoodPct Percentage `json:"goodpct" yaml:"goodpct"`
}

// Percent returns the share of kind num among events of kind den in this bucket
func (bs *BucketStat) Percent(num, den EventKind) Percentage {
	return percentOf(float64(bs.Sums[num]), float64(bs.Sums[den]))
}

// HistogramAggregator sums per-bucket event counts over all the trials of a sweep point
type HistogramAggregator struct {
	horizon float64
	width   float64
	sums    []kindCounts
	trials  int
}

// CreateHistogramAggregator is a constructor.  The bucket sequence has
// ceil(horizon/width) entries and never changes size.
func CreateHistogramAggregator(horizon, width float64) *HistogramAggregator {
	if !(horizon > 0.0) || !(width > 0.0) {
		panic("histogram needs a positive horizon and bucket width")
	}
	ha := new(HistogramAggregator)
	ha.horizon = horizon
	ha.width = width
	ha.sums = make([]kindCounts, BucketCount(horizon, width))
	return ha
}

// Buckets is the length of the bucket sequence
func (ha *HistogramAggregator) Buckets() int {
	return len(ha.sums)
}

// Trials is the number of trials committed so far
func (ha *HistogramAggregator) Trials() int {
	return ha.trials
}

// Commit adds the staged buckets of a finished trial
func (ha *HistogramAggregator) Commit(c *EventCollector) error {
	if !c.Finished() {
		return violation(c.trial, "histogram commit from a collector whose trial has not finished")
	}
	if c.Buckets() != len(ha.sums) {
		return violation(c.trial, "collector has %d buckets, histogram has %d", c.Buckets(), len(ha.sums))
	}
	for idx := range ha.sums {
		for kind := range ha.sums[idx] {
			ha.sums[idx][kind] += c.buckets[idx][kind]
		}
	}
	ha.trials++
	return nil
}

// Sum is the running total of kind in bucket idx
func (ha *HistogramAggregator) Sum(idx int, kind EventKind) int64 {
	return ha.sums[idx][kind]
}

// Totals sums every bucket, per kind
func (ha *HistogramAggregator) Totals() [NumEventKinds]int64 {
	var totals [NumEventKinds]int64
	for idx := range ha.sums {
		for kind := range totals {
			totals[kind] += ha.sums[idx][kind]
		}
	}
	return totals
}

// Finalize normalizes every bucket by trialCount*entities.  trialCount must
// be the number of committed trials.
func (ha *HistogramAggregator) Finalize(trialCount, entities int) ([]BucketStat, error) {
	if trialCount == 0 {
		return nil, ErrNoEffectiveTrials
	}
	if trialCount != ha.trials {
		return nil, violation(-1, "histogram finalized for %d trials but %d were committed", trialCount, ha.trials)
	}
	if entities <= 0 {
		return nil, configErr("entities", "histogram needs a positive entity count, got %d", entities)
	}

	denom := float64(trialCount * entities)
	stats := make([]BucketStat, len(ha.sums))
	for idx := range ha.sums {
		bs := &stats[idx]
		bs.Index = idx
		bs.Start = float64(idx) * ha.width
		bs.End = math.Min(float64(idx+1)*ha.width, ha.horizon)
		bs.Sums = ha.sums[idx]
		for kind := range bs.Sums {
			bs.Means[kind] = float64(bs.Sums[kind]) / denom
		}
		bs.BadPct = bs.Percent(BadContentDelivered, ContentDelivered)
		bs.GoodPct = bs.Percent(GoodContentDelivered, ContentDelivered)
	}
	return stats, nil
}
