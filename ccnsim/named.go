package ccnsim

// named.go holds the topologies the experiments are usually run on, expanded
// into explicit edge lists

import (
	"fmt"

	"github.com/iti/ccnpoison"
	"golang.org/x/exp/slices"
)

// dfnRouterLinks are the links of the 30-router DFN backbone, by router index
var dfnRouterLinks [][2]int = [][2]int{
	{0, 9}, {1, 15}, {2, 9}, {3, 4}, {4, 7}, {4, 14}, {4, 9}, {4, 16}, {4, 25},
	{5, 13}, {6, 7}, {7, 9}, {7, 14}, {7, 22}, {7, 23}, {8, 9}, {9, 13}, {9, 14},
	{9, 22}, {9, 25}, {9, 27}, {10, 14}, {11, 13}, {12, 13}, {13, 14}, {13, 22},
	{13, 25}, {13, 27}, {14, 15}, {14, 18}, {14, 19}, {15, 16}, {15, 19}, {15, 21},
	{15, 22}, {15, 23}, {15, 25}, {15, 27}, {16, 23}, {16, 27}, {17, 23}, {19, 22},
	{20, 25}, {21, 22}, {21, 27}, {22, 23}, {22, 28}, {22, 29}, {23, 24}, {23, 25},
	{23, 27}, {26, 27},
}

const dfnRouters = 30

// dfnSites are the routers consumers attach to, in consumer order
var dfnSites []int = []int{0, 1, 3, 5, 6, 10, 8, 11, 12, 18, 17, 20, 24, 29, 28, 21}

// dfnInterior are the backbone routers that are not attachment points
var dfnInterior []int = []int{4, 7, 9, 13, 14, 15, 16, 19, 21, 22, 23, 25, 27}

// attRouterLinks are the links of the 42-router AT&T backbone, by router index
var attRouterLinks [][2]int = [][2]int{
	{0, 1}, {1, 2}, {1, 17}, {2, 3}, {2, 4}, {2, 6}, {2, 36}, {2, 8}, {2, 17}, {2, 19},
	{3, 5}, {4, 16}, {5, 8}, {6, 7}, {6, 37}, {7, 10}, {8, 9}, {8, 11}, {8, 17}, {10, 11},
	{11, 16}, {11, 38}, {11, 12}, {11, 13}, {11, 23}, {12, 13}, {13, 23}, {14, 16}, {14, 15},
	{15, 39}, {15, 17}, {16, 17}, {16, 19}, {17, 18}, {17, 19}, {17, 29}, {17, 32}, {17, 31},
	{17, 39}, {19, 20}, {19, 27}, {21, 22}, {22, 40}, {22, 23}, {22, 25}, {23, 24}, {25, 27},
	{26, 27}, {27, 40}, {27, 30}, {27, 31}, {28, 29}, {29, 30}, {30, 31}, {30, 41}, {30, 35},
	{31, 41}, {31, 32}, {31, 34}, {32, 33},
}

const attRouters = 42

// attSites are the routers consumers attach to, in consumer order
var attSites []int = []int{0, 36, 37, 9, 38, 13, 16, 20, 18, 28, 21, 24, 26, 35, 34, 33}

// namedTopologies maps a preset name to its builder
var namedTopologies map[string]func() ccnpoison.TopologyDesc = map[string]func() ccnpoison.TopologyDesc{
	"dfn":    func() ccnpoison.TopologyDesc { return dfnTopology(1, false) },
	"dfn-x5": func() ccnpoison.TopologyDesc { return dfnTopology(5, true) },
	"att": func() ccnpoison.TopologyDesc {
		return backboneTopology(attRouters, attRouterLinks, attSites, 1)
	},
	"att-x10": func() ccnpoison.TopologyDesc {
		return backboneTopology(attRouters, attRouterLinks, attSites, 10)
	},
	"1c1p": func() ccnpoison.TopologyDesc {
		return ccnpoison.TopologyDesc{Kind: "chain", Consumers: 1, Routers: 1, ProducerRouter: 0}
	},
	"4c1p": func() ccnpoison.TopologyDesc {
		return ccnpoison.TopologyDesc{Kind: "star", Consumers: 4, Routers: 1, ProducerRouter: 0}
	},
	"4c3r1p": func() ccnpoison.TopologyDesc {
		return ccnpoison.TopologyDesc{Kind: "chain", Consumers: 4, Routers: 3, ProducerRouter: 2}
	},
	"16c1p": func() ccnpoison.TopologyDesc {
		return ccnpoison.TopologyDesc{Kind: "star", Consumers: 16, Routers: 1, ProducerRouter: 0}
	},
	"6c6r1p": sixRouterTree,
	"50c5r":  fiftyConsumerHub,
}

// NamedTopologies lists the preset names in sorted order
func NamedTopologies() []string {
	names := []string{}
	for name := range namedTopologies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NamedTopology returns the description of the preset called name
func NamedTopology(name string) (ccnpoison.TopologyDesc, error) {
	builder, present := namedTopologies[name]
	if !present {
		return ccnpoison.TopologyDesc{}, fmt.Errorf("topology %q not recognized, choose from %v", name, NamedTopologies())
	}
	return builder(), nil
}

// dfnTopology attaches perSite consumers to each DFN attachment router.  When
// interiorOnly is set only the interior routers hold content stores.
func dfnTopology(perSite int, interiorOnly bool) ccnpoison.TopologyDesc {
	td := backboneTopology(dfnRouters, dfnRouterLinks, dfnSites, perSite)
	if interiorOnly {
		td.CacheRouters = append([]int{}, dfnInterior...)
	}
	return td
}

// backboneTopology attaches perSite consumers to each of the sites of a
// backbone of routers joined by links.  Backbones have no producer.
func backboneTopology(routers int, links [][2]int, sites []int, perSite int) ccnpoison.TopologyDesc {
	consumers := perSite * len(sites)
	td := ccnpoison.TopologyDesc{Kind: "edges", Consumers: consumers, Routers: routers, ProducerRouter: -1}

	for c := 0; c < consumers; c++ {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: c, B: consumers + sites[c/perSite]})
	}
	for _, link := range links {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: consumers + link[0], B: consumers + link[1]})
	}
	return td
}

// sixRouterTree is three levels of routers with the producer at the root,
// router 0.  Routers 1 and 2 are below it, and routers 3, 4 and 5 at the
// edge each serve two consumers; router 4 hangs off both 1 and 2.
func sixRouterTree() ccnpoison.TopologyDesc {
	const consumers = 6
	links := [][2]int{{1, 0}, {2, 0}, {3, 1}, {4, 1}, {4, 2}, {5, 2}}
	td := ccnpoison.TopologyDesc{Kind: "edges", Consumers: consumers, Routers: 6, ProducerRouter: 0}
	for c := 0; c < consumers; c++ {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: c, B: consumers + 3 + c/2})
	}
	for _, link := range links {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: consumers + link[0], B: consumers + link[1]})
	}
	return td
}

// fiftyConsumerHub puts ten consumers on each of five edge routers, all joined
// to hub router 5.  There is no producer.
func fiftyConsumerHub() ccnpoison.TopologyDesc {
	const consumers, edgeRouters = 50, 5
	td := ccnpoison.TopologyDesc{Kind: "edges", Consumers: consumers, Routers: edgeRouters + 1, ProducerRouter: -1}
	for c := 0; c < consumers; c++ {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: c, B: consumers + c/(consumers/edgeRouters)})
	}
	for idx := 0; idx < edgeRouters; idx++ {
		td.Edges = append(td.Edges, ccnpoison.EdgeDesc{A: consumers + idx, B: consumers + edgeRouters})
	}
	return td
}
