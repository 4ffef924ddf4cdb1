package ccnpoison

// SlotStat is the averaged stopping sample of one consumer slot
type SlotStat struct {
	Entity        int     `json:"entity" yaml:"entity"`
	Mean          float64 `json:"mean" yaml:"mean"`
	Contributions int     `json:"contributions" yaml:"contributions"`
	Tracked       int     `json:"tracked" yaml:"tracked"`
}

// StopFraction is the share of the trials tracking this slot in which it stopped
func (ss *SlotStat) StopFraction() float64 {
	if ss.Tracked == 0 {
		return 0.0
	}
	return float64(ss.Contributions) / float64(ss.Tracked)
}

// DistributionAggregator accumulates per-consumer samples across trials.
// Slot i belongs to consumer i for every trial.
type DistributionAggregator struct {
	sums    []float64
	contrib []int
	tracked []int
	trials  int
}

// CreateDistributionAggregator is a constructor for a given number of consumer slots
func CreateDistributionAggregator(slots int) *DistributionAggregator {
	if slots < 0 {
		panic("negative slot count for distribution aggregator")
	}
	da := new(DistributionAggregator)
	da.sums = make([]float64, slots)
	da.contrib = make([]int, slots)
	da.tracked = make([]int, slots)
	return da
}

// Slots is the number of consumer slots
func (da *DistributionAggregator) Slots() int {
	return len(da.sums)
}

// Trials is the number of trials committed so far
func (da *DistributionAggregator) Trials() int {
	return da.trials
}

// Commit adds one trial: the consumers tracked in it and the samples they
// produced.  A sample from a consumer that was not tracked contributes nothing.
// Indices are checked before anything is added, so a rejected trial leaves
// the aggregator untouched.
func (da *DistributionAggregator) Commit(trial int, tracked []int, samples map[int]float64) error {
	for _, entity := range tracked {
		if entity < 0 || entity >= len(da.sums) {
			return violation(trial, "tracked consumer %d outside slots [0, %d)", entity, len(da.sums))
		}
	}
	for entity := range samples {
		if entity < 0 || entity >= len(da.sums) {
			return violation(trial, "sample from consumer %d outside slots [0, %d)", entity, len(da.sums))
		}
	}

	seen := make(map[int]bool, len(tracked))
	for _, entity := range tracked {
		if seen[entity] {
			continue
		}
		seen[entity] = true
		da.tracked[entity]++
		sample, present := samples[entity]
		if !present {
			continue
		}
		da.sums[entity] += sample
		da.contrib[entity]++
	}
	da.trials++
	return nil
}

// Finalize returns one SlotStat per slot that received at least one sample,
// in ascending consumer order.  Each mean divides by the slot's own
// contribution count.
func (da *DistributionAggregator) Finalize() []SlotStat {
	stats := make([]SlotStat, 0, len(da.sums))
	for entity := range da.sums {
		if da.contrib[entity] == 0 {
			continue
		}
		stats = append(stats, SlotStat{
			Entity:        entity,
			Mean:          da.sums[entity] / float64(da.contrib[entity]),
			Contributions: da.contrib[entity],
			Tracked:       da.tracked[entity],
		})
	}
	return stats
}

// TrackedSlots lists the slots tracked in at least one trial
func (da *DistributionAggregator) TrackedSlots() []int {
	rtn := []int{}
	for entity, count := range da.tracked {
		if count > 0 {
			rtn = append(rtn, entity)
		}
	}
	return rtn
}
