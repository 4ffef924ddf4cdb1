package ccnsim

// engine.go simulates one trial of content poisoning: consumers repeatedly
// request a single named content, caching routers answer from their stores
// (some seeded with bad versions), a producer answers what the caches cannot,
// and the defense excludes and ranks versions.  Every observation is emitted
// as a ccnpoison.Event to the trial's subscribers.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/iti/ccnpoison"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// Engine builds and runs trials on evtm.  An Engine holds no trial state of
// its own, so one may run trials in sequence, and distinct Engines in parallel.
type Engine struct {
	logger zerolog.Logger
}

// CreateEngine is a constructor
func CreateEngine(logger zerolog.Logger) *Engine {
	eng := new(Engine)
	eng.logger = logger.With().Str("component", "ccnsim").Logger()
	return eng
}

// Factory returns a ccnpoison.EngineFactory producing Engines that log to logger
func Factory(logger zerolog.Logger) ccnpoison.EngineFactory {
	return func() ccnpoison.Engine {
		return CreateEngine(logger)
	}
}

// rngstream.New advances package state shared by every stream
var streamMu sync.Mutex

func newStream(name string) *rngstream.RngStream {
	streamMu.Lock()
	defer streamMu.Unlock()
	return rngstream.New(name)
}

var errWrongHandle = errors.New("handle was not built by ccnsim")
var errDestroyed = errors.New("trial already destroyed")

// stop is a node an interest from a consumer may be answered at
type stop struct {
	node    int
	hops    int
	cacheOn []int // caching routers the answer passes on its way back
}

// consumer is the state of one requesting endpoint for the duration of a trial
type consumer struct {
	id        int
	malicious bool
	rng       *rngstream.RngStream

	plan     []stop // caching routers in the order an interest visits them, then the producer
	excluded map[int]bool

	started   float64
	expressed bool
	stopped   bool
}

// delivery is content on its way back to a consumer
type delivery struct {
	to      *consumer
	obj     *content
	cacheOn []int
}

// trial is the ccnpoison.Handle of one built trial
type trial struct {
	sc      *ccnpoison.ScenarioConfig
	idx     int
	horizon float64

	nw        *network
	caching   []int
	stores    map[int]*contentStore
	consumers []*consumer
	prodRng   *rngstream.RngStream
	sampler   gapSampler
	nextID    int

	evtMgr    *evtm.EventManager
	handlers  []ccnpoison.EventHandler
	ctx       context.Context
	destroyed bool
}

// Build creates the network, stores and consumers of trial number idx of sc
func (eng *Engine) Build(sc *ccnpoison.ScenarioConfig, idx int) (ccnpoison.Handle, error) {
	tr := new(trial)
	tr.sc = sc
	tr.idx = idx
	tr.horizon = sc.Horizon
	label := fmt.Sprintf("%s/%d", sc.Label(), idx)

	nw, err := buildNetwork(&sc.Topology, newStream(label+"/topology"))
	if err != nil {
		return nil, err
	}
	tr.nw = nw

	tr.caching = cachingRouters(nw, &sc.Topology)
	if len(tr.caching) == 0 {
		return nil, fmt.Errorf("no router in range holds a content store")
	}
	// each store ranks with probability RankingShare, drawn per trial
	share := sc.Defense.RankingShare()
	var ranker *rngstream.RngStream
	if share > 0.0 && share < 1.0 {
		ranker = newStream(label + "/ranking")
	}
	tr.stores = make(map[int]*contentStore)
	for _, id := range tr.caching {
		ranking := share >= 1.0 || (ranker != nil && ranker.RandU01() < share)
		tr.stores[id] = createContentStore(sc.Defense.CacheSize, ranking, sc.Defense.ExclusionTimeout)
	}

	tr.sampler, err = gapSamplerFor(sc.Consumer.Randomize)
	if err != nil {
		return nil, err
	}

	roles := newStream(label + "/roles")
	for id := 0; id < sc.Topology.Consumers; id++ {
		c := new(consumer)
		c.id = id
		c.malicious = sc.Attack.BadConsumerRate > 0 && roles.RandU01() < sc.Attack.BadConsumerRate
		if slices.Contains(sc.Attack.BadConsumers, id) {
			c.malicious = true
		}
		c.rng = newStream(fmt.Sprintf("%s/consumer-%d", label, id))
		c.excluded = make(map[int]bool)
		c.plan = tr.planFor(id)
		tr.consumers = append(tr.consumers, c)
	}
	if nw.producer >= 0 {
		tr.prodRng = newStream(label + "/producer")
	}

	tr.evtMgr = evtm.New()

	eng.logger.Debug().Str("point", sc.Label()).Int("trial", idx).Int("nodes", nw.nodes()).
		Int("caching", len(tr.caching)).Msg("trial built")
	return tr, nil
}

// planFor lists where interests from consumer id can be answered.  With a producer
// these are the caching routers on the route to it, then the producer itself.
// Without one they are all caching routers, nearest first.
func (tr *trial) planFor(id int) []stop {
	nw := tr.nw
	plan := []stop{}

	if nw.producer >= 0 {
		route := nw.routeFrom(id, nw.producer)
		onPath := []int{}
		for hop, node := range route {
			if _, present := tr.stores[node]; present {
				plan = append(plan, stop{node: node, hops: hop, cacheOn: append([]int{}, onPath...)})
				onPath = append(onPath, node)
			}
		}
		plan = append(plan, stop{node: nw.producer, hops: len(route) - 1, cacheOn: onPath})
		return plan
	}

	for _, node := range tr.caching {
		route := nw.routeFrom(id, node)
		cacheOn := []int{}
		for _, mid := range route[1 : len(route)-1] {
			if _, present := tr.stores[mid]; present {
				cacheOn = append(cacheOn, mid)
			}
		}
		plan = append(plan, stop{node: node, hops: len(route) - 1, cacheOn: cacheOn})
	}
	slices.SortStableFunc(plan, func(a, b stop) int {
		if a.hops != b.hops {
			return a.hops - b.hops
		}
		return a.node - b.node
	})
	return plan
}

// Run populates the stores, starts every consumer, and simulates up to horizon
func (eng *Engine) Run(ctx context.Context, h ccnpoison.Handle, horizon float64) error {
	tr, ok := h.(*trial)
	if !ok {
		return errWrongHandle
	}
	if tr.destroyed {
		return errDestroyed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tr.ctx = ctx
	tr.horizon = horizon

	tr.populate()
	for _, c := range tr.consumers {
		start := 0.0
		if !c.malicious {
			start = tr.sc.Attack.AttackDuration
		}
		tr.evtMgr.Schedule(tr, c, consumerTick, vrtime.SecondsToTime(start))
	}
	tr.evtMgr.Run(horizon)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Destroy releases the trial's state.  The handle may not be run again.
func (eng *Engine) Destroy(h ccnpoison.Handle) {
	tr, ok := h.(*trial)
	if !ok {
		return
	}
	tr.destroyed = true
	tr.stores = nil
	tr.consumers = nil
	tr.handlers = nil
	tr.evtMgr = nil
}

// populate seeds every caching store at time zero, with the count and freshness
// of the router's tier.  A round(count*badRate) share of the seeded versions is
// bad, shuffled among the good ones.
func (tr *trial) populate() {
	var shuffler *rngstream.RngStream

	for _, router := range tr.caching {
		count, freshness := tr.sc.Attack.PopulateFor(router - tr.nw.consumers)
		if count == 0 {
			continue
		}
		if shuffler == nil {
			shuffler = newStream(fmt.Sprintf("%s/%d/populate", tr.sc.Label(), tr.idx))
		}
		bad := int(math.Round(float64(count) * tr.sc.Attack.PopulateBadRate))
		flags := make([]bool, count)
		for idx := 0; idx < bad; idx++ {
			flags[idx] = true
		}
		for idx := count - 1; idx > 0; idx-- {
			jdx := int(shuffler.RandU01() * float64(idx+1))
			if jdx > idx {
				jdx = idx
			}
			flags[idx], flags[jdx] = flags[jdx], flags[idx]
		}
		for _, isBad := range flags {
			tr.stores[router].insert(0.0, tr.newContent(isBad, freshness))
			if isBad {
				tr.emit(ccnpoison.BadContentInjected, router, 0.0)
			}
		}
	}
}

func (tr *trial) newContent(bad bool, freshness float64) *content {
	tr.nextID++
	return &content{id: tr.nextID, bad: bad, freshness: freshness}
}

// halted is true once the trial's context is done; handlers then schedule nothing further
func (tr *trial) halted() bool {
	return tr.ctx == nil || tr.ctx.Err() != nil
}

// consumerTick expresses an interest and schedules the consumer's next one
func consumerTick(evtMgr *evtm.EventManager, cxt any, data any) any {
	tr := cxt.(*trial)
	c := data.(*consumer)
	if tr.halted() || c.stopped {
		return nil
	}
	now := evtMgr.CurrentSeconds()
	if c.malicious && tr.attacking() && !tr.inAttack(now) {
		return nil
	}
	if !c.expressed {
		c.expressed = true
		c.started = now
	}
	tr.express(c, now, -1)

	gap := tr.sampler(c.rng.RandU01(), []float64{tr.sc.Consumer.Frequency})
	evtMgr.Schedule(tr, c, consumerTick, vrtime.SecondsToTime(gap))
	return nil
}

// attacking is true when the trial opens with a pollution phase
func (tr *trial) attacking() bool {
	return tr.sc.Attack.AttackDuration > 0.0
}

// inAttack is true during the pollution phase
func (tr *trial) inAttack(now float64) bool {
	return now < tr.sc.Attack.AttackDuration
}

// express sends an interest from c along its plan.  newlyExcluded, when not
// negative, is the version c just rejected; each store the interest visits
// records the exclusion before answering.
func (tr *trial) express(c *consumer, now float64, newlyExcluded int) {
	for _, st := range c.plan {
		store, present := tr.stores[st.node]
		if !present {
			// the producer answers everything
			tr.produce(c, st, now)
			return
		}
		if newlyExcluded >= 0 {
			store.exclude(now, newlyExcluded)
		}
		if tr.inAttack(now) {
			// stores only fill during the pollution phase
			continue
		}
		obj := store.lookup(now, c.excluded)
		if obj == nil {
			tr.emit(ccnpoison.CacheMiss, st.node, now)
			continue
		}
		tr.emit(ccnpoison.CacheHit, st.node, now)
		tr.send(c, obj, st)
		return
	}
}

// produce answers an interest at the producer with a new version
func (tr *trial) produce(c *consumer, st stop, now float64) {
	var obj *content
	if tr.inAttack(now) || tr.prodRng.RandU01() < tr.sc.Attack.BadContentRate {
		obj = tr.newContent(true, tr.sc.Attack.BadContentFreshness)
		tr.emit(ccnpoison.BadContentInjected, st.node, now)
	} else {
		obj = tr.newContent(false, tr.sc.Producer.Freshness)
	}
	tr.send(c, obj, st)
}

func (tr *trial) send(c *consumer, obj *content, st stop) {
	latency := 2.0 * float64(st.hops) * tr.sc.Producer.LinkDelay
	tr.evtMgr.Schedule(tr, &delivery{to: c, obj: obj, cacheOn: st.cacheOn}, deliverContent, vrtime.SecondsToTime(latency))
}

// deliverContent caches content on the routers it passed and hands it to the consumer
func deliverContent(evtMgr *evtm.EventManager, cxt any, data any) any {
	tr := cxt.(*trial)
	dlv := data.(*delivery)
	if tr.halted() {
		return nil
	}
	now := evtMgr.CurrentSeconds()
	for _, router := range dlv.cacheOn {
		tr.stores[router].insert(now, dlv.obj)
	}

	c := dlv.to
	if c.stopped {
		return nil
	}
	tr.emit(ccnpoison.ContentDelivered, c.id, now)
	if dlv.obj.bad {
		tr.emit(ccnpoison.BadContentDelivered, c.id, now)
	} else {
		tr.emit(ccnpoison.GoodContentDelivered, c.id, now)
	}

	consumerCfg := &tr.sc.Consumer
	switch {
	case c.malicious:
		if !dlv.obj.bad {
			tr.reject(c, dlv.obj, now)
		}
	case consumerCfg.DisableExclusion:
		tr.accept(c, dlv.obj, now)
	case dlv.obj.bad:
		tr.reject(c, dlv.obj, now)
	case consumerCfg.ExclusionRate > 0 && c.rng.RandU01() < consumerCfg.ExclusionRate:
		tr.reject(c, dlv.obj, now)
	default:
		tr.accept(c, dlv.obj, now)
	}
	return nil
}

// reject excludes obj and immediately re-expresses the interest
func (tr *trial) reject(c *consumer, obj *content, now float64) {
	c.excluded[obj.id] = true
	tr.express(c, now, obj.id)
}

// accept ends the consumer's requests when it stops on good content
func (tr *trial) accept(c *consumer, obj *content, now float64) {
	if obj.bad || !tr.sc.Consumer.StopOnGoodContent {
		return
	}
	c.stopped = true
	tr.emitPayload(ccnpoison.ConsumerStoppedOnGoodContent, c.id, now, now-c.started)
}

func (tr *trial) emit(kind ccnpoison.EventKind, entity int, now float64) {
	tr.dispatch(ccnpoison.Event{Kind: kind, Entity: entity, Time: now})
}

func (tr *trial) emitPayload(kind ccnpoison.EventKind, entity int, now, payload float64) {
	tr.dispatch(ccnpoison.Event{Kind: kind, Entity: entity, Time: now, Payload: payload, HasPayload: true})
}

// dispatch hands ev to every subscriber; events past the horizon are not observed
func (tr *trial) dispatch(ev ccnpoison.Event) {
	if ev.Time > tr.horizon {
		return
	}
	for _, fn := range tr.handlers {
		fn(ev)
	}
}

// Endpoints is the number of consumers
func (tr *trial) Endpoints() int {
	return len(tr.consumers)
}

// Tracked lists the honest consumers
func (tr *trial) Tracked() []int {
	tracked := []int{}
	for _, c := range tr.consumers {
		if !c.malicious {
			tracked = append(tracked, c.id)
		}
	}
	return tracked
}

func (tr *trial) Subscribe(fn ccnpoison.EventHandler) {
	tr.handlers = append(tr.handlers, fn)
}

// Entities is the number of nodes, every one of which may be named in an event
func (tr *trial) Entities() int {
	return tr.nw.nodes()
}

// EntityName names node id for traces
func (tr *trial) EntityName(id int) (string, string) {
	switch {
	case tr.nw.isConsumer(id):
		return fmt.Sprintf("consumer-%d", id), "consumer"
	case tr.nw.isRouter(id):
		return fmt.Sprintf("router-%d", id-tr.nw.consumers), "router"
	case id == tr.nw.producer:
		return "producer", "producer"
	}
	return fmt.Sprintf("node-%d", id), "unknown"
}
