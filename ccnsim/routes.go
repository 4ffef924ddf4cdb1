package ccnsim

// routes.go provides functions to create and access shortest path routes through a trial's network

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// The network of a trial is held in the form used by the gonum graph package, which has
// built-in path discovery algorithms.  Weighting each edge by 1, a shortest path minimizes
// the number of hops, which is the metric an interest's forwarding follows.
//   Node ids are consumers 0..C-1, routers C..C+R-1, and the producer C+R when present.
//
//   The Dijsktra algorithm we call computes a tree of shortest paths from a named node,
// so to get the shortest path from src to dst we either compute such a tree rooted in
// src, or look up from a cached version of an already computed tree the sequence of nodes
// between src and dst, inclusive. Failing that we look for a known path from dst to src, which
// will by symmetry be the reversed path of what we want.

// network is the graph of one trial together with its cache of shortest-path trees
type network struct {
	consumers int
	routers   int
	producer  int // node id of the producer, -1 when there is none

	graph    *simple.WeightedUndirectedGraph
	cachedSP map[int]path.Shortest
}

// createNetwork is a constructor.  Every node exists from the start, linked or not.
func createNetwork(consumers, routers int, withProducer bool) *network {
	nw := new(network)
	nw.consumers = consumers
	nw.routers = routers
	nw.producer = -1
	nw.graph = simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	nw.cachedSP = make(map[int]path.Shortest)

	nodes := consumers + routers
	if withProducer {
		nw.producer = nodes
		nodes++
	}
	for id := 0; id < nodes; id++ {
		nw.graph.AddNode(simple.Node(id))
	}
	return nw
}

// nodes is the number of nodes in the network
func (nw *network) nodes() int {
	return nw.graph.Nodes().Len()
}

// routerID maps a router index to its node id
func (nw *network) routerID(idx int) int {
	return nw.consumers + idx
}

func (nw *network) isConsumer(id int) bool {
	return id >= 0 && id < nw.consumers
}

func (nw *network) isRouter(id int) bool {
	return id >= nw.consumers && id < nw.consumers+nw.routers
}

// addLink represents the link between a and b (with weight 1) in the form that the graph module uses
func (nw *network) addLink(a, b int) {
	if a == b {
		panic("self link in network")
	}
	nw.graph.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: 1.0})
	// any change to the graph invalidates computed trees
	clear(nw.cachedSP)
}

// components returns the connected components, each as a sorted list of node ids,
// ordered by their smallest id
func (nw *network) components() [][]int {
	rtn := [][]int{}
	for _, comp := range topo.ConnectedComponents(nw.graph) {
		rtn = append(rtn, convertNodeSeq(comp))
	}
	for _, comp := range rtn {
		slices.Sort(comp)
	}
	slices.SortFunc(rtn, func(a, b []int) int { return a[0] - b[0] })
	return rtn
}

// connected is true when every node can reach every other
func (nw *network) connected() bool {
	return len(topo.ConnectedComponents(nw.graph)) == 1
}

// getSPTree returns the shortest path tree rooted in input argument 'from'.
// If the tree is found in the cache it is returned, if not it is computed, saved, and returned.
func (nw *network) getSPTree(from int) path.Shortest {
	spTree, present := nw.cachedSP[from]
	if present {
		return spTree
	}

	// let graph/path.DijkstraFrom compute the tree. The first argument
	// is the root of the tree, the second is the graph
	spTree = path.DijkstraFrom(simple.Node(from), nw.graph)
	nw.cachedSP[from] = spTree

	return spTree
}

// hopsBetween is the number of links on a shortest path, +Inf when unreachable
func (nw *network) hopsBetween(src, dst int) float64 {
	if spTree, present := nw.cachedSP[dst]; present {
		return spTree.WeightTo(int64(src))
	}
	return nw.getSPTree(src).WeightTo(int64(dst))
}

// routeFrom returns the shortest path (as a sequence of node ids) from
// src to dst inclusive, or nil when dst cannot be reached
func (nw *network) routeFrom(srcID, dstID int) []int {
	var route []int

	// if we have already an spTree rooted in srcID we can use it.
	spTree, present := nw.cachedSP[srcID]
	if present {
		nodeSeq, _ := spTree.To(int64(dstID))
		return convertNodeSeq(nodeSeq)
	}

	// it may be that we have already a shortest path tree that is rooted in the destination.
	// if so, by symmetry the path is the same, just reversed.
	spTree, present = nw.cachedSP[dstID]
	if present {
		revNodeSeq, _ := spTree.To(int64(srcID))
		revRoute := convertNodeSeq(revNodeSeq)
		lenR := len(revRoute)
		for idx := 0; idx < lenR; idx++ {
			route = append(route, revRoute[lenR-idx-1])
		}
		return route
	}

	// we don't have a tree rooted in either srcID or dstID, so make a tree rooted in srcID
	nodeSeq, _ := nw.getSPTree(srcID).To(int64(dstID))
	return convertNodeSeq(nodeSeq)
}

// convertNodeSeq extracts the node ids from a sequence of graph nodes
func convertNodeSeq(nsQ []graph.Node) []int {
	if len(nsQ) == 0 {
		return nil
	}
	rtn := make([]int, 0, len(nsQ))
	for _, node := range nsQ {
		rtn = append(rtn, int(node.ID()))
	}
	return rtn
}
