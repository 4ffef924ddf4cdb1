package ccnpoison

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func commitTrial(t *testing.T, ha *HistogramAggregator, c *EventCollector, evs []Event) {
	t.Helper()
	c.ResetForNewTrial()
	for _, ev := range evs {
		c.OnEvent(ev)
	}
	require.NoError(t, c.FinishTrial())
	require.NoError(t, ha.Commit(c))
}

func TestHistogramTwoTrials(t *testing.T) {
	ha := CreateHistogramAggregator(400, 20)
	c := CreateEventCollector(400, 20, TimerFlip)
	require.Equal(t, 20, ha.Buckets())

	commitTrial(t, ha, c, deliveries(2, 22, 42, 62, 82))
	commitTrial(t, ha, c, deliveries(5, 25, 45))

	want := make([]int64, 20)
	copy(want, []int64{2, 2, 2, 1, 1})
	got := make([]int64, 20)
	for idx := range got {
		got[idx] = ha.Sum(idx, ContentDelivered)
	}
	assert.Equal(t, want, got)

	stats, err := ha.Finalize(2, 1)
	require.NoError(t, err)
	require.Len(t, stats, 20)
	assert.Equal(t, 1.0, stats[0].Means[ContentDelivered])
	assert.Equal(t, 0.5, stats[4].Means[ContentDelivered])
	assert.Equal(t, 80.0, stats[4].Start)
	assert.Equal(t, 100.0, stats[4].End)
	assert.False(t, stats[7].BadPct.Defined)
	assert.Equal(t, "undefined", stats[7].GoodPct.String())
}

func TestHistogramPercentagesBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ha := CreateHistogramAggregator(100, 10)
		c := CreateEventCollector(100, 10, TimerFlip)
		trials := rapid.IntRange(1, 5).Draw(t, "trials")
		for trial := 0; trial < trials; trial++ {
			c.ResetForNewTrial()
			deliveriesPerTrial := rapid.IntRange(0, 60).Draw(t, "deliveries")
			for idx := 0; idx < deliveriesPerTrial; idx++ {
				tm := float64(idx) * 100.0 / 60.0
				c.OnEvent(Event{Kind: ContentDelivered, Entity: 0, Time: tm})
				if rapid.Bool().Draw(t, "bad") {
					c.OnEvent(Event{Kind: BadContentDelivered, Entity: 0, Time: tm})
				} else {
					c.OnEvent(Event{Kind: GoodContentDelivered, Entity: 0, Time: tm})
				}
			}
			require.NoError(t, c.FinishTrial())
			require.NoError(t, ha.Commit(c))
		}

		stats, err := ha.Finalize(trials, 1)
		require.NoError(t, err)
		for _, bs := range stats {
			if bs.Sums[ContentDelivered] == 0 {
				require.False(t, bs.BadPct.Defined)
				require.False(t, bs.GoodPct.Defined)
				continue
			}
			require.True(t, bs.BadPct.Defined)
			require.GreaterOrEqual(t, bs.BadPct.Value, 0.0)
			require.LessOrEqual(t, bs.BadPct.Value, 100.0)
			require.InDelta(t, 100.0, bs.BadPct.Value+bs.GoodPct.Value, 1e-9)
		}
	})
}

func TestHistogramFinalizeChecks(t *testing.T) {
	ha := CreateHistogramAggregator(400, 20)
	_, err := ha.Finalize(0, 4)
	assert.True(t, errors.Is(err, ErrNoEffectiveTrials))

	c := CreateEventCollector(400, 20, TimerFlip)
	commitTrial(t, ha, c, deliveries(1))

	_, err = ha.Finalize(2, 4)
	requireViolation(t, err)

	_, err = ha.Finalize(1, 0)
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
}

func TestHistogramCommitChecks(t *testing.T) {
	ha := CreateHistogramAggregator(400, 20)

	unfinished := CreateEventCollector(400, 20, TimerFlip)
	unfinished.OnEvent(Event{Kind: ContentDelivered, Time: 3})
	requireViolation(t, ha.Commit(unfinished))

	other := CreateEventCollector(400, 10, TimerFlip)
	require.NoError(t, other.FinishTrial())
	requireViolation(t, ha.Commit(other))

	assert.Zero(t, ha.Trials())
	assert.Equal(t, [NumEventKinds]int64{}, ha.Totals())
}

func TestPercentageSerialization(t *testing.T) {
	bytes, err := json.Marshal([]Percentage{{Value: 12.5, Defined: true}, {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[12.5, null]`, string(bytes))

	assert.Equal(t, "12.50%", Percentage{Value: 12.5, Defined: true}.String())
	v, err := Percentage{}.MarshalYAML()
	require.NoError(t, err)
	assert.Nil(t, v)
}
