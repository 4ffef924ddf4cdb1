package ccnsim

import (
	"testing"

	"github.com/iti/ccnpoison"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChainTopology(t *testing.T) {
	td := &ccnpoison.TopologyDesc{Kind: "chain", Consumers: 2, Routers: 3, ProducerRouter: 2}
	nw, err := buildNetwork(td, newStream("chain"))
	require.NoError(t, err)

	assert.Equal(t, 6, nw.nodes())
	assert.Equal(t, 5, nw.producer)
	assert.Equal(t, []int{0, 2, 3, 4, 5}, nw.routeFrom(0, 5))
	assert.Equal(t, []int{5, 4, 3, 2, 1}, nw.routeFrom(5, 1))
	assert.Equal(t, 4.0, nw.hopsBetween(1, 5))
	assert.Equal(t, 2.0, nw.hopsBetween(0, 1))
}

func TestStarTopology(t *testing.T) {
	td := &ccnpoison.TopologyDesc{Kind: "star", Consumers: 3, Routers: 3, ProducerRouter: -1}
	nw, err := buildNetwork(td, newStream("star"))
	require.NoError(t, err)

	assert.Equal(t, -1, nw.producer)
	assert.Equal(t, 6, nw.nodes())
	for c := 0; c < 3; c++ {
		assert.Equal(t, 1.0, nw.hopsBetween(c, 3))
		assert.Equal(t, 2.0, nw.hopsBetween(c, 5))
	}
}

func TestEdgesTopologyErrors(t *testing.T) {
	td := &ccnpoison.TopologyDesc{Kind: "edges", Consumers: 2, Routers: 1, ProducerRouter: -1,
		Edges: []ccnpoison.EdgeDesc{{A: 0, B: 1}}}
	_, err := buildNetwork(td, newStream("edges"))
	assert.ErrorContains(t, err, "two consumers")

	td.Edges = []ccnpoison.EdgeDesc{{A: 0, B: 2}}
	_, err = buildNetwork(td, newStream("edges"))
	assert.ErrorContains(t, err, "not connected")

	td.Edges = []ccnpoison.EdgeDesc{{A: 0, B: 2}, {A: 1, B: 2}}
	nw, err := buildNetwork(td, newStream("edges"))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2}}, nw.components())

	td.Kind = "ring"
	_, err = buildNetwork(td, newStream("edges"))
	assert.Error(t, err)

	td.Kind = "edges"
	td.ProducerRouter = 4
	_, err = buildNetwork(td, newStream("edges"))
	assert.ErrorContains(t, err, "producer router")
}

func TestRandomTopologyIsConnected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		td := &ccnpoison.TopologyDesc{
			Kind:           "random",
			Consumers:      rapid.IntRange(1, 10).Draw(rt, "consumers"),
			Routers:        rapid.IntRange(1, 12).Draw(rt, "routers"),
			LinkProb:       rapid.Float64Range(0, 1).Draw(rt, "linkprob"),
			ProducerRouter: -1,
		}
		if rapid.Bool().Draw(rt, "producer") {
			td.ProducerRouter = rapid.IntRange(0, td.Routers-1).Draw(rt, "producerrouter")
		}
		nw, err := buildNetwork(td, newStream("random"))
		if err != nil {
			rt.Fatalf("random topology: %v", err)
		}
		if !nw.connected() {
			rt.Fatalf("random topology left disconnected")
		}
		for c := 0; c < td.Consumers; c++ {
			route := nw.routeFrom(c, nw.routerID(0))
			if len(route) < 2 || route[0] != c {
				rt.Fatalf("no route from consumer %d: %v", c, route)
			}
		}
	})
}

func TestCachingRouters(t *testing.T) {
	td := &ccnpoison.TopologyDesc{Kind: "chain", Consumers: 2, Routers: 4, ProducerRouter: -1}
	nw, err := buildNetwork(td, newStream("caching"))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, cachingRouters(nw, td))

	td.CacheRouters = []int{3, 1, 3}
	assert.Equal(t, []int{3, 5}, cachingRouters(nw, td))
}

func TestNamedTopologies(t *testing.T) {
	assert.Equal(t, []string{"16c1p", "1c1p", "4c1p", "4c3r1p", "50c5r", "6c6r1p", "att", "att-x10", "dfn", "dfn-x5"},
		NamedTopologies())

	_, err := NamedTopology("arpanet")
	assert.Error(t, err)

	td, err := NamedTopology("dfn")
	require.NoError(t, err)
	assert.Equal(t, 16, td.Consumers)
	assert.Len(t, td.Edges, 16+len(dfnRouterLinks))
	nw, err := buildNetwork(&td, newStream("dfn"))
	require.NoError(t, err)
	assert.Equal(t, 46, nw.nodes())
	assert.Len(t, cachingRouters(nw, &td), 30)

	td, err = NamedTopology("dfn-x5")
	require.NoError(t, err)
	assert.Equal(t, 80, td.Consumers)
	nw, err = buildNetwork(&td, newStream("dfn-x5"))
	require.NoError(t, err)
	assert.Len(t, cachingRouters(nw, &td), len(dfnInterior))

	// consumers 0..4 share the first attachment router
	for c := 0; c < 5; c++ {
		assert.Equal(t, 1.0, nw.hopsBetween(c, 80+dfnSites[0]))
	}

	for _, name := range NamedTopologies() {
		td, err := NamedTopology(name)
		require.NoError(t, err)
		sc := ccnpoison.CreateExperimentCfg(name).Base.Copy()
		sc.Topology = td
		assert.NoError(t, sc.Validate(), name)
	}
}

func TestBackbonePresets(t *testing.T) {
	td, err := NamedTopology("att")
	require.NoError(t, err)
	assert.Equal(t, 16, td.Consumers)
	assert.Equal(t, 42, td.Routers)
	assert.Len(t, td.Edges, 16+len(attRouterLinks))
	nw, err := buildNetwork(&td, newStream("att"))
	require.NoError(t, err)
	assert.Equal(t, 58, nw.nodes())
	assert.Equal(t, -1, nw.producer)
	assert.Equal(t, 1.0, nw.hopsBetween(1, 16+36))

	td, err = NamedTopology("att-x10")
	require.NoError(t, err)
	assert.Equal(t, 160, td.Consumers)
	nw, err = buildNetwork(&td, newStream("att-x10"))
	require.NoError(t, err)
	for c := 10; c < 20; c++ {
		assert.Equal(t, 1.0, nw.hopsBetween(c, 160+36))
	}
}

func TestSmallPresets(t *testing.T) {
	td, err := NamedTopology("6c6r1p")
	require.NoError(t, err)
	nw, err := buildNetwork(&td, newStream("6c6r1p"))
	require.NoError(t, err)
	assert.Equal(t, 12, nw.producer)
	// consumers 0 and 1 sit on router 3, three hops from the producer on router 0
	assert.Equal(t, []int{0, 9, 7, 6, 12}, nw.routeFrom(0, 12))
	assert.Equal(t, 4.0, nw.hopsBetween(5, 12))
	assert.Equal(t, 1.0, nw.hopsBetween(5, 11))

	td, err = NamedTopology("50c5r")
	require.NoError(t, err)
	nw, err = buildNetwork(&td, newStream("50c5r"))
	require.NoError(t, err)
	assert.Equal(t, 56, nw.nodes())
	assert.Equal(t, 1.0, nw.hopsBetween(49, 54))
	assert.Equal(t, 2.0, nw.hopsBetween(0, 55))
	assert.Equal(t, 3.0, nw.hopsBetween(0, 51))

	td, err = NamedTopology("4c1p")
	require.NoError(t, err)
	nw, err = buildNetwork(&td, newStream("4c1p"))
	require.NoError(t, err)
	assert.Equal(t, 5, nw.producer)
	assert.Equal(t, 2.0, nw.hopsBetween(3, 5))

	td, err = NamedTopology("1c1p")
	require.NoError(t, err)
	nw, err = buildNetwork(&td, newStream("1c1p"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, nw.routeFrom(0, nw.producer))
}

func TestGapSamplers(t *testing.T) {
	_, err := gapSamplerFor("poisson")
	assert.Error(t, err)

	constant, err := gapSamplerFor("")
	require.NoError(t, err)
	assert.Equal(t, 0.2, constant(0.9, []float64{5}))

	uniform, err := gapSamplerFor("uniform")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, uniform(0.5, []float64{5}), 1e-12)
	assert.InDelta(t, 0.4, uniform(1, []float64{5}), 1e-12)

	exponential, err := gapSamplerFor("exponential")
	require.NoError(t, err)
	assert.Zero(t, exponential(0, []float64{5}))
	assert.InDelta(t, roundFloat(0.138629, 6), roundFloat(exponential(0.5, []float64{5}), 6), 1e-6)
}
