package ccnsim

// topology.go turns a TopologyDesc into the linked network of one trial

import (
	"fmt"

	"github.com/iti/ccnpoison"
	"github.com/iti/rngstream"
)

// buildNetwork creates and links the network described by td.  rng is drawn
// from only by the "random" kind.
func buildNetwork(td *ccnpoison.TopologyDesc, rng *rngstream.RngStream) (*network, error) {
	nw := createNetwork(td.Consumers, td.Routers, td.ProducerRouter >= 0)

	switch td.Kind {
	case "star":
		// every consumer and every other router hangs off router 0
		hub := nw.routerID(0)
		for c := 0; c < td.Consumers; c++ {
			nw.addLink(c, hub)
		}
		for idx := 1; idx < td.Routers; idx++ {
			nw.addLink(hub, nw.routerID(idx))
		}
	case "chain":
		// consumers at the head of a line of routers
		for c := 0; c < td.Consumers; c++ {
			nw.addLink(c, nw.routerID(0))
		}
		for idx := 1; idx < td.Routers; idx++ {
			nw.addLink(nw.routerID(idx-1), nw.routerID(idx))
		}
	case "edges":
		for _, edge := range td.Edges {
			if nw.isConsumer(edge.A) && nw.isConsumer(edge.B) {
				return nil, fmt.Errorf("edge %d-%d links two consumers", edge.A, edge.B)
			}
			if edge.A == edge.B || edge.A < 0 || edge.B < 0 ||
				edge.A >= td.Consumers+td.Routers || edge.B >= td.Consumers+td.Routers {
				return nil, fmt.Errorf("edge %d-%d is not between two distinct nodes", edge.A, edge.B)
			}
			nw.addLink(edge.A, edge.B)
		}
	case "random":
		linkRandom(nw, td.LinkProb, rng)
	default:
		return nil, fmt.Errorf("topology kind %q not recognized", td.Kind)
	}

	if td.ProducerRouter >= 0 {
		if td.ProducerRouter >= td.Routers {
			return nil, fmt.Errorf("producer router %d out of range", td.ProducerRouter)
		}
		nw.addLink(nw.producer, nw.routerID(td.ProducerRouter))
	}

	if !nw.connected() {
		return nil, fmt.Errorf("%s topology is not connected, %d components", td.Kind, len(nw.components()))
	}
	return nw, nil
}

// linkRandom draws each router-router link independently with probability prob,
// joins whatever components result through their lowest numbered routers, and
// attaches each consumer to a router chosen uniformly
func linkRandom(nw *network, prob float64, rng *rngstream.RngStream) {
	for i := 0; i < nw.routers; i++ {
		for j := i + 1; j < nw.routers; j++ {
			if rng.RandU01() < prob {
				nw.addLink(nw.routerID(i), nw.routerID(j))
			}
		}
	}

	// only routers are linked so far, so every component holding a router is router-only
	var prevRouter int = -1
	for _, comp := range nw.components() {
		if !nw.isRouter(comp[0]) {
			continue
		}
		if prevRouter >= 0 {
			nw.addLink(prevRouter, comp[0])
		}
		prevRouter = comp[0]
	}

	for c := 0; c < nw.consumers; c++ {
		idx := int(rng.RandU01() * float64(nw.routers))
		if idx == nw.routers {
			idx--
		}
		nw.addLink(c, nw.routerID(idx))
	}
}

// cachingRouters returns the node ids of the routers with a content store, ascending
func cachingRouters(nw *network, td *ccnpoison.TopologyDesc) []int {
	rtn := []int{}
	if len(td.CacheRouters) == 0 {
		for idx := 0; idx < nw.routers; idx++ {
			rtn = append(rtn, nw.routerID(idx))
		}
		return rtn
	}
	seen := make(map[int]bool)
	for idx := 0; idx < nw.routers; idx++ {
		for _, cr := range td.CacheRouters {
			if cr == idx && !seen[idx] {
				seen[idx] = true
				rtn = append(rtn, nw.routerID(idx))
			}
		}
	}
	return rtn
}
