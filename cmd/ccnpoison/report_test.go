package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/iti/ccnpoison"
	"github.com/iti/ccnpoison/ccnsim"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExperimentAppliesOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("topology", "dfn")
	viper.Set("set", []string{"attack.populatecount=20", "sweep.param=attack.populatebadrate", "sweep.to=1", "sweep.step=0.5"})
	viper.Set("trials", 7)

	exp, err := loadExperiment()
	require.NoError(t, err)
	assert.Equal(t, 16, exp.Base.Topology.Consumers)
	assert.Equal(t, 20, exp.Base.Attack.PopulateCount)
	assert.Equal(t, 7, exp.Base.Trials)
	assert.Equal(t, 1, exp.Workers)

	values, err := exp.SweepValues()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, values)

	viper.Set("topology", "arpanet")
	_, err = loadExperiment()
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	exp := ccnpoison.CreateExperimentCfg("report")
	exp.Base.Trials = 2
	exp.Base.Horizon = 4
	exp.Base.BucketWidth = 2
	exp.Base.Consumer.StopOnGoodContent = true
	exp.Base.Attack.BadContentRate = 0

	res, err := ccnpoison.RunExperiment(context.Background(), exp, ccnsim.Factory(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)

	var out bytes.Buffer
	printReport(&out, res)
	text := out.String()
	assert.Contains(t, text, "experiment report")
	assert.Contains(t, text, "delivered")
	assert.Contains(t, text, "stopping time over 4 consumers")
	assert.Contains(t, text, "2/2")
}

func TestPrintTopologies(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printTopologies(&out))
	assert.Contains(t, out.String(), "dfn-x5")
	assert.Contains(t, out.String(), "80")
}

func TestPrintReportMarksInvalidPoints(t *testing.T) {
	exp := ccnpoison.CreateExperimentCfg("partly")
	exp.Base.Trials = 1
	exp.Base.Horizon = 2
	exp.Base.BucketWidth = 1
	exp.Sweep = ccnpoison.SweepCfg{Param: "bad-content-rate", From: 0.5, To: 1.5, Step: 0.5}

	res, err := ccnpoison.RunExperiment(context.Background(), exp, ccnsim.Factory(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, res.Points, 3)

	var out bytes.Buffer
	printReport(&out, res)
	text := out.String()
	assert.Contains(t, text, "partly[attack.badcontentrate=1.5] (not run)")
	assert.Contains(t, text, "invalid: configuration parameter attack.badcontentrate")
	assert.Contains(t, text, "0/1")
}
