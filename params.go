package ccnpoison

// params.go lets individual scenario parameters be named and set from strings,
// which is how command-line overrides and the swept parameter reach a ScenarioConfig.

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// valueStruct holds a parameter value in each of the forms a parameter might want it
type valueStruct struct {
	intValue    int
	floatValue  float64
	stringValue string
	boolValue   bool
}

// stringToValueStruct takes a string and determines whether it is an integer,
// floating point, boolean, or a string
func stringToValueStruct(v string) valueStruct {
	vs := valueStruct{intValue: 0, floatValue: 0.0, stringValue: v, boolValue: false}

	// try conversion to int
	ivalue, ierr := strconv.Atoi(v)
	if ierr == nil {
		vs.intValue = ivalue
		vs.floatValue = float64(ivalue)
		vs.boolValue = ivalue != 0
		return vs
	}

	// failing that, try conversion to float
	fvalue, ferr := strconv.ParseFloat(v, 64)
	if ferr == nil {
		vs.floatValue = fvalue
		// "2.0" still serves an integer parameter
		if fvalue == math.Trunc(fvalue) && math.Abs(fvalue) <= math.MaxInt32 {
			vs.intValue = int(fvalue)
		}
		return vs
	}

	// left with it being a string.  See if true, True
	if v == "true" || v == "True" {
		vs.boolValue = true
	}
	return vs
}

// paramKind says which form of a valueStruct a parameter consumes
type paramKind int

const (
	intParam paramKind = iota
	floatParam
	boolParam
	stringParam
)

// paramKinds maps every parameter setParam recognizes to the form it takes
var paramKinds map[string]paramKind = map[string]paramKind{
	"trials":                     intParam,
	"horizon":                    floatParam,
	"bucketwidth":                floatParam,
	"flip":                       stringParam,
	"topology.kind":              stringParam,
	"topology.consumers":         intParam,
	"topology.routers":           intParam,
	"topology.linkprob":          floatParam,
	"topology.producerrouter":    intParam,
	"defense.ranking":            boolParam,
	"defense.rankingfraction":    floatParam,
	"defense.exclusiontimeout":   floatParam,
	"defense.cachesize":          intParam,
	"attack.badcontentrate":      floatParam,
	"attack.populatecount":       intParam,
	"attack.populatebadrate":     floatParam,
	"attack.badcontentfreshness": floatParam,
	"attack.badconsumerrate":     floatParam,
	"attack.attackduration":      floatParam,
	"consumer.frequency":         floatParam,
	"consumer.randomize":         stringParam,
	"consumer.exclusionrate":     floatParam,
	"consumer.disableexclusion":  boolParam,
	"consumer.stopongoodcontent": boolParam,
	"producer.freshness":         floatParam,
	"producer.linkdelay":         floatParam,
}

// paramAliases maps the short names sweeps are usually described by to parameter names
var paramAliases map[string]string = map[string]string{
	"bad-content-rate":  "attack.badcontentrate",
	"bad-content-count": "attack.populatecount",
	"bad-consumer-rate": "attack.badconsumerrate",
	"attack-duration":   "attack.attackduration",
	"exclusion-rate":    "consumer.exclusionrate",
	"exclusion-timeout": "defense.exclusiontimeout",
	"ranking-fraction":  "defense.rankingfraction",
}

// CanonicalParam returns the name setParam knows name by.  Case and hyphens are
// ignored, so "attack.bad-content-rate" is "attack.badcontentrate", and the
// short names of paramAliases are resolved.
func CanonicalParam(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if full, present := paramAliases[name]; present {
		return full
	}
	return strings.ReplaceAll(name, "-", "")
}

// ParamNames returns the recognized parameter names in sorted order
func ParamNames() []string {
	names := make([]string, 0, len(paramKinds))
	for name := range paramKinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// sweepable is true for parameters with a numeric value
func sweepable(param string) bool {
	kind, present := paramKinds[param]
	return present && (kind == intParam || kind == floatParam)
}

// setParam assigns the named parameter from value
func (sc *ScenarioConfig) setParam(param string, value valueStruct) error {
	kind, present := paramKinds[param]
	if !present {
		return configErr(param, "unknown parameter")
	}
	if kind == intParam && value.floatValue != float64(value.intValue) {
		return configErr(param, "needs an integer value, got %g", value.floatValue)
	}

	switch param {
	case "trials":
		sc.Trials = value.intValue
	case "horizon":
		sc.Horizon = value.floatValue
	case "bucketwidth":
		sc.BucketWidth = value.floatValue
	case "flip":
		sc.Flip = value.stringValue
	case "topology.kind":
		sc.Topology.Kind = value.stringValue
	case "topology.consumers":
		sc.Topology.Consumers = value.intValue
	case "topology.routers":
		sc.Topology.Routers = value.intValue
	case "topology.linkprob":
		sc.Topology.LinkProb = value.floatValue
	case "topology.producerrouter":
		sc.Topology.ProducerRouter = value.intValue
	case "defense.ranking":
		sc.Defense.Ranking = value.boolValue
	case "defense.rankingfraction":
		share := value.floatValue
		sc.Defense.RankingFraction = &share
	case "defense.exclusiontimeout":
		sc.Defense.ExclusionTimeout = value.floatValue
	case "defense.cachesize":
		sc.Defense.CacheSize = value.intValue
	case "attack.badcontentrate":
		sc.Attack.BadContentRate = value.floatValue
	case "attack.populatecount":
		sc.Attack.PopulateCount = value.intValue
	case "attack.populatebadrate":
		sc.Attack.PopulateBadRate = value.floatValue
	case "attack.badcontentfreshness":
		sc.Attack.BadContentFreshness = value.floatValue
	case "attack.badconsumerrate":
		sc.Attack.BadConsumerRate = value.floatValue
	case "attack.attackduration":
		sc.Attack.AttackDuration = value.floatValue
	case "consumer.frequency":
		sc.Consumer.Frequency = value.floatValue
	case "consumer.randomize":
		sc.Consumer.Randomize = value.stringValue
	case "consumer.exclusionrate":
		sc.Consumer.ExclusionRate = value.floatValue
	case "consumer.disableexclusion":
		sc.Consumer.DisableExclusion = value.boolValue
	case "consumer.stopongoodcontent":
		sc.Consumer.StopOnGoodContent = value.boolValue
	case "producer.freshness":
		sc.Producer.Freshness = value.floatValue
	case "producer.linkdelay":
		sc.Producer.LinkDelay = value.floatValue
	default:
		panic("parameter " + param + " listed but not handled")
	}
	return nil
}

// ApplyParam sets one parameter of the experiment from an assignment of the
// form name=value.  Names are those of ParamNames or their aliases, or one of
// "workers", "sweep.param", "sweep.from", "sweep.to", "sweep.step".
func (exp *ExperimentCfg) ApplyParam(assignment string) error {
	name, value, found := strings.Cut(assignment, "=")
	name = CanonicalParam(name)
	value = strings.TrimSpace(value)
	if !found || name == "" {
		return configErr(assignment, "expected name=value")
	}
	vs := stringToValueStruct(value)

	switch name {
	case "workers":
		exp.Workers = vs.intValue
	case "sweep.param":
		exp.Sweep.Param = CanonicalParam(value)
	case "sweep.from":
		exp.Sweep.From = vs.floatValue
	case "sweep.to":
		exp.Sweep.To = vs.floatValue
	case "sweep.step":
		exp.Sweep.Step = vs.floatValue
	default:
		return exp.Base.setParam(name, vs)
	}
	return nil
}
