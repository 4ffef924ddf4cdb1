package ccnpoison

// reducer.go turns accumulated results into the rows a report prints.
// Nothing here does I/O.

import (
	"github.com/montanaflynn/stats"
	"golang.org/x/exp/slices"
)

// SweepRow summarizes one sweep point
type SweepRow struct {
	Value      float64 `json:"value" yaml:"value"`
	Configured int     `json:"configured" yaml:"configured"`
	Effective  int     `json:"effective" yaml:"effective"`

	// consumer-side counts per consumer per trial
	Delivered float64 `json:"delivered" yaml:"delivered"`
	Good      float64 `json:"good" yaml:"good"`
	Bad       float64 `json:"bad" yaml:"bad"`
	Stopped   float64 `json:"stopped" yaml:"stopped"`

	// bad content per consumer per simulated second
	BadPerSecond float64 `json:"badpersecond" yaml:"badpersecond"`

	// network-side counts per trial per simulated second
	Injected float64 `json:"injected" yaml:"injected"`
	Hits     float64 `json:"hits" yaml:"hits"`
	Misses   float64 `json:"misses" yaml:"misses"`

	BadPct  Percentage `json:"badpct" yaml:"badpct"`
	GoodPct Percentage `json:"goodpct" yaml:"goodpct"`
	HitPct  Percentage `json:"hitpct" yaml:"hitpct"`
}

// ReduceSweep builds one row per point, in the order given.  A point with no
// effective trial gets a row of zero rates and undefined percentages.
func ReduceSweep(points []*PointResult) []SweepRow {
	rows := make([]SweepRow, 0, len(points))
	for _, pr := range points {
		row := SweepRow{Value: pr.SweepValue, Configured: pr.ConfiguredTrials, Effective: pr.EffectiveTrials}
		if pr.EffectiveTrials > 0 && pr.Entities > 0 {
			perEntity := float64(pr.EffectiveTrials * pr.Entities)
			perSecond := float64(pr.EffectiveTrials) * pr.Horizon
			tot := pr.Totals

			row.Delivered = float64(tot[ContentDelivered]) / perEntity
			row.Good = float64(tot[GoodContentDelivered]) / perEntity
			row.Bad = float64(tot[BadContentDelivered]) / perEntity
			row.Stopped = float64(tot[ConsumerStoppedOnGoodContent]) / perEntity
			row.BadPerSecond = row.Bad / pr.Horizon
			row.Injected = float64(tot[BadContentInjected]) / perSecond
			row.Hits = float64(tot[CacheHit]) / perSecond
			row.Misses = float64(tot[CacheMiss]) / perSecond

			row.BadPct = percentOf(float64(tot[BadContentDelivered]), float64(tot[ContentDelivered]))
			row.GoodPct = percentOf(float64(tot[GoodContentDelivered]), float64(tot[ContentDelivered]))
			row.HitPct = percentOf(float64(tot[CacheHit]), float64(tot[CacheHit]+tot[CacheMiss]))
		}
		rows = append(rows, row)
	}
	return rows
}

// HistogramRow is one printed line of a time histogram
type HistogramRow struct {
	Start     float64    `json:"start" yaml:"start"`
	End       float64    `json:"end" yaml:"end"`
	Delivered float64    `json:"delivered" yaml:"delivered"`
	Good      float64    `json:"good" yaml:"good"`
	Bad       float64    `json:"bad" yaml:"bad"`
	BadPct    Percentage `json:"badpct" yaml:"badpct"`
	GoodPct   Percentage `json:"goodpct" yaml:"goodpct"`
}

// ReduceHistogram projects bucket statistics onto the delivered, good and bad columns
func ReduceHistogram(buckets []BucketStat) []HistogramRow {
	rows := make([]HistogramRow, 0, len(buckets))
	for _, bs := range buckets {
		rows = append(rows, HistogramRow{
			Start:     bs.Start,
			End:       bs.End,
			Delivered: bs.Means[ContentDelivered],
			Good:      bs.Means[GoodContentDelivered],
			Bad:       bs.Means[BadContentDelivered],
			BadPct:    bs.BadPct,
			GoodPct:   bs.GoodPct,
		})
	}
	return rows
}

// CDFPoint is one step of an empirical distribution function
type CDFPoint struct {
	Value    float64 `json:"value" yaml:"value"`
	Fraction float64 `json:"fraction" yaml:"fraction"`
}

// DistributionReport summarizes the averaged stopping times of the consumer slots
type DistributionReport struct {
	// averaged per-slot samples in ascending order
	Samples []float64  `json:"samples" yaml:"samples"`
	CDF     []CDFPoint `json:"cdf" yaml:"cdf"`

	// slots with samples, and the share of their tracked trials in which they stopped
	Slots        int     `json:"slots" yaml:"slots"`
	StopFraction float64 `json:"stopfraction" yaml:"stopfraction"`

	Defined bool    `json:"defined" yaml:"defined"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Median  float64 `json:"median" yaml:"median"`
	P90     float64 `json:"p90" yaml:"p90"`
}

// ReduceDistribution sorts the slot means and derives the CDF and summary statistics.
// The CDF is taken over the slots with samples.
func ReduceDistribution(slots []SlotStat) DistributionReport {
	report := DistributionReport{Slots: len(slots)}
	if len(slots) == 0 {
		return report
	}

	samples := make([]float64, 0, len(slots))
	contrib, tracked := 0, 0
	for _, ss := range slots {
		samples = append(samples, ss.Mean)
		contrib += ss.Contributions
		tracked += ss.Tracked
	}
	slices.Sort(samples)
	report.Samples = samples
	if tracked > 0 {
		report.StopFraction = float64(contrib) / float64(tracked)
	}

	n := float64(len(samples))
	for idx, value := range samples {
		report.CDF = append(report.CDF, CDFPoint{Value: value, Fraction: float64(idx+1) / n})
	}

	data := stats.Float64Data(samples)
	mean, merr := data.Mean()
	median, derr := data.Median()
	p90, perr := data.Percentile(90)
	if merr != nil || derr != nil || perr != nil {
		return report
	}
	report.Defined = true
	report.Mean = mean
	report.Median = median
	report.P90 = p90
	return report
}
