package ccnsim

import (
	"context"
	"testing"

	"github.com/iti/ccnpoison"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadContentShareGrowsWithBadContentRate(t *testing.T) {
	exp := ccnpoison.CreateExperimentCfg("bcV")
	exp.Workers = 3
	exp.Base.Trials = 3
	exp.Base.Horizon = 20
	exp.Base.BucketWidth = 5
	exp.Sweep = ccnpoison.SweepCfg{Param: "bad-content-rate", From: 0, To: 1, Step: 0.25}

	res, err := ccnpoison.RunExperiment(context.Background(), exp, Factory(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, res.Sweep, 5)

	prev := -1.0
	for idx, row := range res.Sweep {
		require.True(t, row.BadPct.Defined, "row %d", idx)
		assert.Equal(t, 3, row.Effective)
		assert.GreaterOrEqual(t, row.BadPct.Value, prev, "row %d", idx)
		prev = row.BadPct.Value
	}
	assert.Equal(t, 0.0, res.Sweep[0].BadPct.Value)
	assert.Equal(t, 100.0, res.Sweep[4].BadPct.Value)
	assert.Less(t, res.Sweep[1].BadPct.Value, res.Sweep[3].BadPct.Value)
}

func TestRankingFractionSweep(t *testing.T) {
	exp := ccnpoison.CreateExperimentCfg("enV")
	exp.Base.Trials = 2
	exp.Base.Horizon = 5
	exp.Base.BucketWidth = 5
	require.NoError(t, exp.ApplyParam("sweep.param=ranking-fraction"))
	require.NoError(t, exp.ApplyParam("sweep.step=0.5"))
	require.NoError(t, exp.ApplyParam("sweep.to=1"))

	res, err := ccnpoison.RunExperiment(context.Background(), exp, Factory(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "defense.rankingfraction", res.SweepParam)
	require.Len(t, res.Points, 3)
	for _, point := range res.Points {
		assert.Equal(t, 2, point.EffectiveTrials)
	}
}
