package ccnpoison

// scenario.go holds the description of an experiment: the serializable
// ExperimentCfg read from a yaml or json file, and the immutable
// ScenarioConfig it produces for each point of its parameter sweep.

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// TopologyKinds lists the recognized values of TopologyDesc.Kind
var TopologyKinds []string = []string{"star", "chain", "edges", "random"}

// RandomizeKinds lists the recognized values of ConsumerCfg.Randomize
var RandomizeKinds []string = []string{"", "none", "uniform", "exponential"}

// EdgeDesc is an undirected link between two nodes.  Consumers are numbered
// 0..Consumers-1 and routers Consumers..Consumers+Routers-1.
type EdgeDesc struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

// TopologyDesc selects and parameterizes the network a trial runs on
type TopologyDesc struct {
	Kind      string `json:"kind" yaml:"kind"`
	Consumers int    `json:"consumers" yaml:"consumers"`
	Routers   int    `json:"routers" yaml:"routers"`

	// explicit links, used when Kind is "edges"
	Edges []EdgeDesc `json:"edges,omitempty" yaml:"edges,omitempty"`

	// probability of a link between two routers, used when Kind is "random"
	LinkProb float64 `json:"linkprob,omitempty" yaml:"linkprob,omitempty"`

	// index (among routers) of the router the producer hangs off; negative for no producer
	ProducerRouter int `json:"producerrouter" yaml:"producerrouter"`

	// indices (among routers) of the routers with a content store, empty for all of them
	CacheRouters []int `json:"cacherouters,omitempty" yaml:"cacherouters,omitempty"`
}

// DefenseCfg describes the content store defense
type DefenseCfg struct {
	// prefer least-excluded versions when answering from cache
	Ranking bool `json:"ranking" yaml:"ranking"`

	// when set, the probability that each caching router ranks, drawn anew every
	// trial; it takes the place of Ranking
	RankingFraction *float64 `json:"rankingfraction,omitempty" yaml:"rankingfraction,omitempty"`

	// remaining lifetime, in seconds, granted to a cached version once excluded
	ExclusionTimeout float64 `json:"exclusiontimeout" yaml:"exclusiontimeout"`

	// capacity of each router's store, 0 for unbounded
	CacheSize int `json:"cachesize" yaml:"cachesize"`
}

// RankingShare is the probability that a caching router ranks the versions it holds
func (dc *DefenseCfg) RankingShare() float64 {
	if dc.RankingFraction != nil {
		return *dc.RankingFraction
	}
	if dc.Ranking {
		return 1.0
	}
	return 0.0
}

// PopulateTier seeds a group of routers with a count and freshness of their own
type PopulateTier struct {
	// indices (among routers) of the routers in the tier
	Routers   []int   `json:"routers" yaml:"routers"`
	Count     int     `json:"count" yaml:"count"`
	Freshness float64 `json:"freshness" yaml:"freshness"`
}

// AttackCfg describes the attacker
type AttackCfg struct {
	// probability that the producer answers with bad content
	BadContentRate float64 `json:"badcontentrate" yaml:"badcontentrate"`

	// versions seeded into every router's store at time zero, and the share of them that is bad
	PopulateCount   int     `json:"populatecount" yaml:"populatecount"`
	PopulateBadRate float64 `json:"populatebadrate" yaml:"populatebadrate"`

	// freshness, in seconds, of injected bad versions
	BadContentFreshness float64 `json:"badcontentfreshness" yaml:"badcontentfreshness"`

	// routers seeded differently from PopulateCount and BadContentFreshness
	PopulateTiers []PopulateTier `json:"populatetiers,omitempty" yaml:"populatetiers,omitempty"`

	// probability that a consumer is malicious in a trial
	BadConsumerRate float64 `json:"badconsumerrate" yaml:"badconsumerrate"`

	// consumers malicious in every trial
	BadConsumers []int `json:"badconsumers,omitempty" yaml:"badconsumers,omitempty"`

	// length, in seconds, of an opening pollution phase, 0 for none.  During it
	// the producer answers only with bad content, routers cache without answering
	// from their stores, and only malicious consumers request.  Honest consumers
	// start when it ends, malicious ones stop.
	AttackDuration float64 `json:"attackduration,omitempty" yaml:"attackduration,omitempty"`
}

// PopulateFor returns the count and freshness of the versions seeded into the router with index router
func (ac *AttackCfg) PopulateFor(router int) (int, float64) {
	for _, tier := range ac.PopulateTiers {
		if slices.Contains(tier.Routers, router) {
			return tier.Count, tier.Freshness
		}
	}
	return ac.PopulateCount, ac.BadContentFreshness
}

// ConsumerCfg describes honest consumer behavior
type ConsumerCfg struct {
	// interests per second
	Frequency float64 `json:"frequency" yaml:"frequency"`

	// gap between interests: "none" (constant 1/Frequency), "uniform" on [0, 2/Frequency],
	// or "exponential" with mean 1/Frequency
	Randomize string `json:"randomize" yaml:"randomize"`

	// probability that good content is excluded as if it were bad
	ExclusionRate float64 `json:"exclusionrate" yaml:"exclusionrate"`

	DisableExclusion  bool `json:"disableexclusion" yaml:"disableexclusion"`
	StopOnGoodContent bool `json:"stopongoodcontent" yaml:"stopongoodcontent"`
}

// ProducerCfg describes the producer and the links
type ProducerCfg struct {
	// freshness, in seconds, of content the producer answers with
	Freshness float64 `json:"freshness" yaml:"freshness"`

	// one-way delay, in seconds, of every link
	LinkDelay float64 `json:"linkdelay" yaml:"linkdelay"`
}

// ScenarioConfig is the parameter set of one sweep point.  The harness never
// modifies one after it is produced.
type ScenarioConfig struct {
	Name string `json:"name" yaml:"name"`

	// swept parameter and its value at this point, empty when there is no sweep
	SweepParam string  `json:"sweepparam,omitempty" yaml:"sweepparam,omitempty"`
	SweepValue float64 `json:"sweepvalue,omitempty" yaml:"sweepvalue,omitempty"`

	Trials      int     `json:"trials" yaml:"trials"`
	Horizon     float64 `json:"horizon" yaml:"horizon"`
	BucketWidth float64 `json:"bucketwidth" yaml:"bucketwidth"`
	Flip        string  `json:"flip" yaml:"flip"`

	Topology TopologyDesc `json:"topology" yaml:"topology"`
	Defense  DefenseCfg   `json:"defense" yaml:"defense"`
	Attack   AttackCfg    `json:"attack" yaml:"attack"`
	Consumer ConsumerCfg  `json:"consumer" yaml:"consumer"`
	Producer ProducerCfg  `json:"producer" yaml:"producer"`
}

// Entities is the number of consumers, the per-trial normalizer
func (sc *ScenarioConfig) Entities() int {
	return sc.Topology.Consumers
}

// FlipPolicy returns the parsed bucket flip policy
func (sc *ScenarioConfig) FlipPolicy() FlipPolicy {
	fp, _ := FlipPolicyFromStr(sc.Flip)
	return fp
}

// Label names the point for logs and traces
func (sc *ScenarioConfig) Label() string {
	if sc.SweepParam == "" {
		return sc.Name
	}
	return fmt.Sprintf("%s[%s=%g]", sc.Name, sc.SweepParam, sc.SweepValue)
}

// Copy returns a deep copy
func (sc *ScenarioConfig) Copy() *ScenarioConfig {
	cpy := *sc
	cpy.Topology.Edges = slices.Clone(sc.Topology.Edges)
	cpy.Topology.CacheRouters = slices.Clone(sc.Topology.CacheRouters)
	if sc.Defense.RankingFraction != nil {
		share := *sc.Defense.RankingFraction
		cpy.Defense.RankingFraction = &share
	}
	if sc.Attack.PopulateTiers != nil {
		cpy.Attack.PopulateTiers = make([]PopulateTier, len(sc.Attack.PopulateTiers))
		for idx, tier := range sc.Attack.PopulateTiers {
			tier.Routers = slices.Clone(tier.Routers)
			cpy.Attack.PopulateTiers[idx] = tier
		}
	}
	cpy.Attack.BadConsumers = slices.Clone(sc.Attack.BadConsumers)
	return &cpy
}

func checkRate(param string, value float64) error {
	if value < 0.0 || value > 1.0 || math.IsNaN(value) {
		return configErr(param, "must lie in [0, 1], got %g", value)
	}
	return nil
}

func checkNonNeg(param string, value float64) error {
	if value < 0.0 || math.IsNaN(value) {
		return configErr(param, "must not be negative, got %g", value)
	}
	return nil
}

// Validate checks every parameter, returning all the problems found
// as ConfigurationErrors gathered into one error
func (sc *ScenarioConfig) Validate() error {
	var merr *multierror.Error
	add := func(err error) {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if sc.Trials <= 0 {
		add(configErr("trials", "must be positive, got %d", sc.Trials))
	}
	if !(sc.Horizon > 0.0) {
		add(configErr("horizon", "must be positive, got %g", sc.Horizon))
	}
	if !(sc.BucketWidth > 0.0) {
		add(configErr("bucketwidth", "must be positive, got %g", sc.BucketWidth))
	}
	if _, err := FlipPolicyFromStr(sc.Flip); err != nil {
		add(configErr("flip", "%v", err))
	}

	td := sc.Topology
	if !slices.Contains(TopologyKinds, td.Kind) {
		add(configErr("topology.kind", "unknown topology %q", td.Kind))
	}
	if td.Consumers <= 0 {
		add(configErr("topology.consumers", "must be positive, got %d", td.Consumers))
	}
	if td.Routers <= 0 {
		add(configErr("topology.routers", "must be positive, got %d", td.Routers))
	}
	if td.ProducerRouter >= td.Routers {
		add(configErr("topology.producerrouter", "router %d does not exist among %d", td.ProducerRouter, td.Routers))
	}
	if td.Kind == "edges" && len(td.Edges) == 0 {
		add(configErr("topology.edges", "an edges topology needs at least one edge"))
	}
	nodes := td.Consumers + td.Routers
	for idx, edge := range td.Edges {
		if edge.A < 0 || edge.A >= nodes || edge.B < 0 || edge.B >= nodes || edge.A == edge.B {
			add(configErr("topology.edges", "edge %d (%d,%d) is not a link between two of %d nodes", idx, edge.A, edge.B, nodes))
		}
	}
	for _, router := range td.CacheRouters {
		if router < 0 || router >= td.Routers {
			add(configErr("topology.cacherouters", "router %d does not exist among %d", router, td.Routers))
		}
	}
	add(checkRate("topology.linkprob", td.LinkProb))

	if sc.Defense.RankingFraction != nil {
		add(checkRate("defense.rankingfraction", *sc.Defense.RankingFraction))
	}
	add(checkNonNeg("defense.exclusiontimeout", sc.Defense.ExclusionTimeout))
	if sc.Defense.CacheSize < 0 {
		add(configErr("defense.cachesize", "must not be negative, got %d", sc.Defense.CacheSize))
	}

	add(checkRate("attack.badcontentrate", sc.Attack.BadContentRate))
	add(checkRate("attack.populatebadrate", sc.Attack.PopulateBadRate))
	add(checkRate("attack.badconsumerrate", sc.Attack.BadConsumerRate))
	if sc.Attack.PopulateCount < 0 {
		add(configErr("attack.populatecount", "must not be negative, got %d", sc.Attack.PopulateCount))
	}
	add(checkNonNeg("attack.badcontentfreshness", sc.Attack.BadContentFreshness))
	add(checkNonNeg("attack.attackduration", sc.Attack.AttackDuration))
	tiered := make(map[int]bool)
	for idx, tier := range sc.Attack.PopulateTiers {
		if tier.Count < 0 {
			add(configErr("attack.populatetiers", "tier %d count must not be negative, got %d", idx, tier.Count))
		}
		add(checkNonNeg("attack.populatetiers", tier.Freshness))
		for _, router := range tier.Routers {
			switch {
			case router < 0 || router >= td.Routers:
				add(configErr("attack.populatetiers", "tier %d router %d does not exist among %d", idx, router, td.Routers))
			case tiered[router]:
				add(configErr("attack.populatetiers", "router %d is in more than one tier", router))
			case len(td.CacheRouters) > 0 && !slices.Contains(td.CacheRouters, router):
				add(configErr("attack.populatetiers", "tier %d router %d holds no content store", idx, router))
			}
			tiered[router] = true
		}
	}
	for _, c := range sc.Attack.BadConsumers {
		if c < 0 || c >= td.Consumers {
			add(configErr("attack.badconsumers", "consumer %d does not exist among %d", c, td.Consumers))
		}
	}

	if !(sc.Consumer.Frequency > 0.0) {
		add(configErr("consumer.frequency", "must be positive, got %g", sc.Consumer.Frequency))
	}
	add(checkRate("consumer.exclusionrate", sc.Consumer.ExclusionRate))
	if !slices.Contains(RandomizeKinds, sc.Consumer.Randomize) {
		add(configErr("consumer.randomize", "unknown gap distribution %q", sc.Consumer.Randomize))
	}

	add(checkNonNeg("producer.freshness", sc.Producer.Freshness))
	if !(sc.Producer.LinkDelay > 0.0) {
		add(configErr("producer.linkdelay", "must be positive, got %g", sc.Producer.LinkDelay))
	}

	return merr.ErrorOrNil()
}

// SweepCfg names the swept parameter and its range, both ends included
type SweepCfg struct {
	Param string  `json:"param" yaml:"param"`
	From  float64 `json:"from" yaml:"from"`
	To    float64 `json:"to" yaml:"to"`
	Step  float64 `json:"step" yaml:"step"`
}

// ExperimentCfg is the serializable description of a whole experiment
type ExperimentCfg struct {
	ExpName string         `json:"expname" yaml:"expname"`
	Sweep   SweepCfg       `json:"sweep" yaml:"sweep"`
	Workers int            `json:"workers" yaml:"workers"`
	Base    ScenarioConfig `json:"scenario" yaml:"scenario"`
}

// CreateExperimentCfg is a constructor for an experiment with the defaults
// of the histogram scenarios: 400 seconds in 20 second buckets, one interest
// per second, a 100 second exclusion timeout
func CreateExperimentCfg(name string) *ExperimentCfg {
	exp := new(ExperimentCfg)
	exp.ExpName = name
	exp.Workers = 1
	exp.Base = ScenarioConfig{
		Name:        name,
		Trials:      100,
		Horizon:     400.0,
		BucketWidth: 20.0,
		Flip:        TimerFlip.String(),
		Topology:    TopologyDesc{Kind: "chain", Consumers: 4, Routers: 3, ProducerRouter: 2},
		Defense:     DefenseCfg{Ranking: true, ExclusionTimeout: 100.0},
		Attack:      AttackCfg{BadContentRate: 0.5, BadContentFreshness: 400.0},
		Consumer:    ConsumerCfg{Frequency: 1.0},
		Producer:    ProducerCfg{Freshness: 20.0, LinkDelay: 0.01},
	}
	return exp
}

// SweepValues lists the sweep values from From to To inclusive.  Values are
// computed from an integer step count so 0..1 by 0.1 has exactly 11 points.
// An experiment without a swept parameter has the single value 0.
func (exp *ExperimentCfg) SweepValues() ([]float64, error) {
	sw := exp.Sweep
	if sw.Param == "" {
		return []float64{0.0}, nil
	}
	if !(sw.Step > 0.0) {
		return nil, configErr("sweep.step", "must be positive, got %g", sw.Step)
	}
	if sw.To < sw.From {
		return nil, configErr("sweep.to", "%g precedes sweep.from %g", sw.To, sw.From)
	}
	steps := int(math.Floor((sw.To-sw.From)/sw.Step + 1e-9))
	values := make([]float64, 0, steps+1)
	for idx := 0; idx <= steps; idx++ {
		values = append(values, roundFloat(sw.From+float64(idx)*sw.Step, 9))
	}
	return values, nil
}

// PointConfig returns the validated scenario of the sweep point at value
func (exp *ExperimentCfg) PointConfig(value float64) (*ScenarioConfig, error) {
	sc := exp.Base.Copy()
	if sc.Name == "" {
		sc.Name = exp.ExpName
	}
	if exp.Sweep.Param != "" {
		param := CanonicalParam(exp.Sweep.Param)
		if !sweepable(param) {
			return nil, configErr("sweep.param", "%q cannot be swept", exp.Sweep.Param)
		}
		vs := valueStruct{floatValue: value, intValue: int(math.Round(value))}
		if err := sc.setParam(param, vs); err != nil {
			return nil, err
		}
		sc.SweepParam = param
		sc.SweepValue = value
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// PointConfigs returns the scenario of every sweep point, failing on the first invalid one
func (exp *ExperimentCfg) PointConfigs() ([]*ScenarioConfig, error) {
	values, err := exp.SweepValues()
	if err != nil {
		return nil, err
	}
	scs := make([]*ScenarioConfig, 0, len(values))
	for _, value := range values {
		sc, err := exp.PointConfig(value)
		if err != nil {
			return nil, fmt.Errorf("sweep point %s=%g: %w", exp.Sweep.Param, value, err)
		}
		scs = append(scs, sc)
	}
	return scs, nil
}

// WriteToFile stores the ExperimentCfg to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (exp *ExperimentCfg) WriteToFile(filename string) error {
	return writeSerialized(filename, *exp)
}

// ReadExperimentCfg deserializes a byte slice holding a representation of an ExperimentCfg.
// If the input argument of dict (those bytes) is empty, the file whose name is given is read
// to acquire them.
func ReadExperimentCfg(filename string, useYAML bool, dict []byte) (*ExperimentCfg, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := ExperimentCfg{Workers: 1}

	if useYAML {
		err = yaml.Unmarshal(dict, &example)
	} else {
		err = json.Unmarshal(dict, &example)
	}

	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", filename, err)
	}

	return &example, nil
}

// IsYAMLFile reports whether the extension of filename selects yaml serialization
func IsYAMLFile(filename string) bool {
	pathExt := path.Ext(filename)
	return pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml"
}

// writeSerialized writes obj as yaml or json, chosen by the extension of filename
func writeSerialized(filename string, obj any) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error

	if IsYAMLFile(filename) {
		bytes, merr = yaml.Marshal(obj)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(obj, "", "\t")
	} else {
		return fmt.Errorf("output file %s needs a .yaml, .yml or .json extension", filename)
	}

	if merr != nil {
		return merr
	}

	return os.WriteFile(filename, bytes, 0o644)
}
