package ccnsim

// arrivals.go samples the gaps between a consumer's interests

import (
	"fmt"
	"math"
)

// gapSampler maps a uniform sample and a rate to an interarrival time
type gapSampler func(u01 float64, params []float64) float64

// roundFloat rounds val to precision decimal places
func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// expRV returns a sample of a exponentially distributed random number
func expRV(u01, rate float64) float64 {
	return -math.Log(1.0-u01) / rate
}

// sampleExpRV gives exponential gaps with mean 1/params[0]
func sampleExpRV(u01 float64, params []float64) float64 {
	return expRV(u01, params[0])
}

// sampleConst ignores u01 and gives the constant gap 1/params[0]
func sampleConst(u01 float64, params []float64) float64 {
	return 1.0 / params[0]
}

// sampleUniform gives gaps uniform on [0, 2/params[0]], with mean 1/params[0]
func sampleUniform(u01 float64, params []float64) float64 {
	return u01 * 2.0 / params[0]
}

var samplerByName map[string]gapSampler = map[string]gapSampler{
	"":            sampleConst,
	"none":        sampleConst,
	"uniform":     sampleUniform,
	"exponential": sampleExpRV,
}

// gapSamplerFor returns the sampler a ConsumerCfg.Randomize value names
func gapSamplerFor(randomize string) (gapSampler, error) {
	sampler, present := samplerByName[randomize]
	if !present {
		return nil, fmt.Errorf("randomize %q not recognized", randomize)
	}
	return sampler, nil
}
