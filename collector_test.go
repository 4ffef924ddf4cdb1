package ccnpoison

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
	"pgregory.net/rapid"
)

func bucketRow(c *EventCollector, kind EventKind) []int64 {
	row := make([]int64, c.Buckets())
	for idx := range row {
		row[idx] = c.BucketCounts(idx, kind)
	}
	return row
}

func requireViolation(t *testing.T, err error) {
	t.Helper()
	var av *AggregationInvariantViolation
	require.Error(t, err)
	require.True(t, errors.As(err, &av), "expected an aggregation invariant violation, got %v", err)
}

func genEvents(t *rapid.T, horizon float64) []Event {
	times := rapid.SliceOfN(rapid.Float64Range(0, horizon), 0, 200).Draw(t, "times")
	slices.Sort(times)
	evs := make([]Event, 0, len(times))
	for idx, tm := range times {
		kind := EventKind(rapid.IntRange(0, int(NumEventKinds)-1).Draw(t, "kind"))
		entity := rapid.IntRange(NoEntity, 8).Draw(t, "entity")
		evs = append(evs, Event{Kind: kind, Entity: entity, Time: tm, Payload: float64(idx), HasPayload: idx%2 == 0})
	}
	return evs
}

func TestCollectorConservation(t *testing.T) {
	for _, policy := range []FlipPolicy{TimerFlip, EventFlip} {
		t.Run(policy.String(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				horizon := rapid.Float64Range(1, 500).Draw(t, "horizon")
				width := rapid.Float64Range(0.5, horizon).Draw(t, "width")
				evs := genEvents(t, horizon)

				c := CreateEventCollector(horizon, width, policy)
				for _, ev := range evs {
					c.OnEvent(ev)
				}
				require.NoError(t, c.FinishTrial())

				for kind := EventKind(0); kind < NumEventKinds; kind++ {
					var sum int64
					for _, n := range bucketRow(c, kind) {
						sum += n
					}
					require.Equal(t, c.Total(kind), sum, "kind %s", kind)
					require.Zero(t, c.InFlight(kind))
				}
			})
		})
	}
}

func TestCollectorResetEqualsFresh(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := FlipPolicy(rapid.IntRange(0, 1).Draw(t, "policy"))
		c := CreateEventCollector(400, 20, policy)
		c.SetTrial(rapid.IntRange(0, 50).Draw(t, "trial"))
		for _, ev := range genEvents(t, 400) {
			c.OnEvent(ev)
		}
		if rapid.Bool().Draw(t, "finish") {
			_ = c.FinishTrial()
		}
		// an out-of-order event leaves a violation behind to be cleared too
		c.OnEvent(Event{Kind: CacheHit, Entity: NoEntity, Time: -1})

		c.ResetForNewTrial()
		require.Equal(t, CreateEventCollector(400, 20, policy), c)
	})
}

func TestTimerFlipLeavesEmptyBucketsEmpty(t *testing.T) {
	c := CreateEventCollector(100, 20, TimerFlip)
	for _, ev := range deliveries(2, 65, 99) {
		c.OnEvent(ev)
	}
	require.NoError(t, c.FinishTrial())
	assert.Equal(t, []int64{1, 0, 0, 1, 1}, bucketRow(c, ContentDelivered))
}

func TestFlipPolicies(t *testing.T) {
	evs := deliveries(2, 15, 22, 30, 41)
	// a cache event never opens a bucket under the event policy
	evs = append(evs, Event{Kind: CacheHit, Entity: 20, Time: 65})

	timer := CreateEventCollector(100, 20, TimerFlip)
	event := CreateEventCollector(100, 20, EventFlip)
	for _, ev := range evs {
		timer.OnEvent(ev)
		event.OnEvent(ev)
	}
	require.NoError(t, timer.FinishTrial())
	require.NoError(t, event.FinishTrial())

	assert.Equal(t, []int64{2, 2, 1, 0, 0}, bucketRow(timer, ContentDelivered))
	assert.Equal(t, []int64{0, 0, 0, 1, 0}, bucketRow(timer, CacheHit))

	// the delivery at 22 opens bucket 1 and is counted there; 41 is less than a width after 22
	assert.Equal(t, []int64{2, 3, 0, 0, 0}, bucketRow(event, ContentDelivered))
	assert.Equal(t, []int64{0, 1, 0, 0, 0}, bucketRow(event, CacheHit))
}

func TestEventAtHorizonLandsInLastBucket(t *testing.T) {
	for _, policy := range []FlipPolicy{TimerFlip, EventFlip} {
		c := CreateEventCollector(400, 20, policy)
		times := []float64{}
		for tm := 0.0; tm <= 400; tm += 20 {
			times = append(times, tm)
		}
		for _, ev := range deliveries(times...) {
			c.OnEvent(ev)
		}
		require.NoError(t, c.FinishTrial(), policy.String())
		row := bucketRow(c, ContentDelivered)
		require.Len(t, row, 20)
		assert.Equal(t, int64(2), row[19], policy.String())
		assert.Equal(t, int64(1), row[0], policy.String())
	}
}

func TestCollectorViolations(t *testing.T) {
	t.Run("beyond horizon", func(t *testing.T) {
		c := CreateEventCollector(400, 20, TimerFlip)
		c.OnEvent(Event{Kind: ContentDelivered, Time: 400.5})
		requireViolation(t, c.FinishTrial())
	})
	t.Run("time going backwards", func(t *testing.T) {
		c := CreateEventCollector(400, 20, TimerFlip)
		c.OnEvent(Event{Kind: ContentDelivered, Time: 30})
		c.OnEvent(Event{Kind: ContentDelivered, Time: 10})
		requireViolation(t, c.Err())
		// later events are ignored once violated
		c.OnEvent(Event{Kind: ContentDelivered, Time: 50})
		assert.Equal(t, int64(1), c.Total(ContentDelivered))
		requireViolation(t, c.FinishTrial())
	})
	t.Run("unknown kind", func(t *testing.T) {
		c := CreateEventCollector(400, 20, TimerFlip)
		c.OnEvent(Event{Kind: NumEventKinds, Time: 1})
		requireViolation(t, c.FinishTrial())
	})
	t.Run("event after finish", func(t *testing.T) {
		c := CreateEventCollector(400, 20, TimerFlip)
		require.NoError(t, c.FinishTrial())
		c.OnEvent(Event{Kind: ContentDelivered, Time: 1})
		requireViolation(t, c.Err())
	})
	t.Run("finish twice", func(t *testing.T) {
		c := CreateEventCollector(400, 20, TimerFlip)
		require.NoError(t, c.FinishTrial())
		requireViolation(t, c.FinishTrial())
	})
}

func TestCollectorEntityCountsAndStops(t *testing.T) {
	c := CreateEventCollector(400, 20, TimerFlip)
	c.OnEvent(Event{Kind: GoodContentDelivered, Entity: 3, Time: 1})
	c.OnEvent(Event{Kind: ConsumerStoppedOnGoodContent, Entity: 3, Time: 1, Payload: 0.75, HasPayload: true})
	c.OnEvent(Event{Kind: ConsumerStoppedOnGoodContent, Entity: 3, Time: 9, Payload: 8, HasPayload: true})
	c.OnEvent(Event{Kind: ConsumerStoppedOnGoodContent, Entity: 1, Time: 12})
	c.OnEvent(Event{Kind: CacheMiss, Entity: NoEntity, Time: 13})
	require.NoError(t, c.FinishTrial())

	assert.Equal(t, int64(1), c.EntityCount(3, GoodContentDelivered))
	assert.Equal(t, int64(2), c.EntityCount(3, ConsumerStoppedOnGoodContent))
	assert.Zero(t, c.EntityCount(5, GoodContentDelivered))
	assert.Equal(t, map[int]float64{3: 0.75, 1: 12}, c.StopSamples())
}

func TestBucketCount(t *testing.T) {
	assert.Equal(t, 20, BucketCount(400, 20))
	assert.Equal(t, 21, BucketCount(401, 20))
	assert.Equal(t, 10, BucketCount(1, 0.1))
	assert.Equal(t, 1, BucketCount(5, 20))
}

func TestFlipPolicyFromStr(t *testing.T) {
	fp, err := FlipPolicyFromStr("event")
	require.NoError(t, err)
	assert.Equal(t, EventFlip, fp)

	fp, err = FlipPolicyFromStr("")
	require.NoError(t, err)
	assert.Equal(t, TimerFlip, fp)

	_, err = FlipPolicyFromStr("hourly")
	assert.Error(t, err)
}

func TestEventKindNames(t *testing.T) {
	for kind := EventKind(0); kind < NumEventKinds; kind++ {
		back, err := EventKindFromStr(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, back)
	}
	_, err := EventKindFromStr("interest")
	assert.Error(t, err)
}
