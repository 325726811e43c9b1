package network

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sarchlab/qnet/sim"
	"github.com/sirupsen/logrus"
)

// ErrNoRoute is returned when two nodes are not connected by any sequence of
// classical links.
var ErrNoRoute = errors.New("no route between nodes")

// ErrUnknownNode is returned when a message is addressed to a node that was
// never added to the network.
var ErrUnknownNode = errors.New("unknown node")

// Network owns the classical links of the simulated topology and delivers
// messages over them.
type Network struct {
	engine sim.Engine

	nodes     map[string]Receiver
	nodeNames []string
	links     map[string]map[string]sim.VTimeInSec

	// distance[src][dst] and firstHop[src][dst] are computed lazily and
	// dropped whenever the topology changes.
	distance map[string]map[string]sim.VTimeInSec
	firstHop map[string]map[string]string
}

// NewNetwork creates an empty network that schedules deliveries on engine.
func NewNetwork(engine sim.Engine) *Network {
	return &Network{
		engine: engine,
		nodes:  make(map[string]Receiver),
		links:  make(map[string]map[string]sim.VTimeInSec),
	}
}

// Name returns the name of the network. It is used by event loggers.
func (n *Network) Name() string {
	return "Network"
}

// AddNode registers a node. Node names must be unique.
func (n *Network) AddNode(r Receiver) {
	name := r.Name()
	if _, found := n.nodes[name]; found {
		panic(fmt.Sprintf("node %s already added", name))
	}

	n.nodes[name] = r
	n.nodeNames = append(n.nodeNames, name)
	n.links[name] = make(map[string]sim.VTimeInSec)
	n.invalidateRoutes()
}

// Node returns the node with the given name, or nil.
func (n *Network) Node(name string) Receiver {
	return n.nodes[name]
}

// NodeNames returns node names in the order the nodes were added.
func (n *Network) NodeNames() []string {
	return append([]string(nil), n.nodeNames...)
}

// Connect creates a bidirectional classical link with the given one-way
// delay.
func (n *Network) Connect(a, b string, delay sim.VTimeInSec) {
	n.nodeMustExist(a)
	n.nodeMustExist(b)

	if a == b {
		panic("cannot connect a node to itself")
	}

	if delay < 0 {
		panic("link delay cannot be negative")
	}

	n.links[a][b] = delay
	n.links[b][a] = delay
	n.invalidateRoutes()
}

// Neighbors returns the nodes directly linked to the given node, sorted by
// name.
func (n *Network) Neighbors(name string) []string {
	neighbors := make([]string, 0, len(n.links[name]))
	for other := range n.links[name] {
		neighbors = append(neighbors, other)
	}

	sort.Strings(neighbors)

	return neighbors
}

// Send transmits msg from src to dst. The message is delivered after the
// total delay of the shortest route between the two nodes.
func (n *Network) Send(src, dst string, msg Msg) error {
	if _, found := n.nodes[dst]; !found {
		return fmt.Errorf("%w: %s", ErrUnknownNode, dst)
	}

	delay, ok := n.Delay(src, dst)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrNoRoute, src, dst)
	}

	now := n.engine.CurrentTime()
	meta := msg.Meta()
	if meta.ID == "" {
		meta.ID = sim.GetIDGenerator().Generate()
	}
	meta.Src = src
	meta.Dst = dst
	meta.SendTime = now

	evt := &DeliveryEvent{
		EventBase: sim.NewEventBase(now+delay, n),
		Msg:       msg,
	}
	n.engine.Schedule(evt)

	logrus.WithFields(logrus.Fields{
		"src":      src,
		"dst":      dst,
		"receiver": meta.Receiver,
		"arrive":   float64(now + delay),
	}).Trace("message sent")

	return nil
}

// Handle delivers messages whose propagation delay has elapsed.
func (n *Network) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *DeliveryEvent:
		meta := e.Msg.Meta()
		meta.RecvTime = e.Time()
		n.nodes[meta.Dst].ReceiveMessage(meta.Src, e.Msg)
	default:
		logrus.Panicf("network cannot handle event of type %T", e)
	}

	return nil
}

// Delay returns the propagation delay of the shortest route from src to dst.
func (n *Network) Delay(src, dst string) (sim.VTimeInSec, bool) {
	n.computeRoutes()

	if src == dst {
		return 0, true
	}

	d, found := n.distance[src][dst]
	if !found {
		return 0, false
	}

	return d, true
}

// RoutingTable builds the next-hop table of the given node along shortest
// routes.
func (n *Network) RoutingTable(src string) Table {
	n.nodeMustExist(src)
	n.computeRoutes()

	t := NewTable()
	for dst, hop := range n.firstHop[src] {
		t.DefineRoute(dst, hop)
	}

	return t
}

func (n *Network) nodeMustExist(name string) {
	if _, found := n.nodes[name]; !found {
		panic(fmt.Sprintf("node %s does not exist", name))
	}
}

func (n *Network) invalidateRoutes() {
	n.distance = nil
	n.firstHop = nil
}

func (n *Network) computeRoutes() {
	if n.distance != nil {
		return
	}

	n.distance = make(map[string]map[string]sim.VTimeInSec)
	n.firstHop = make(map[string]map[string]string)

	for _, src := range n.nodeNames {
		n.dijkstra(src)
	}
}

// dijkstra runs a quadratic shortest-path search from src. Ties are broken
// by node insertion order so that routes are deterministic.
func (n *Network) dijkstra(src string) {
	inf := sim.VTimeInSec(math.Inf(1))
	dist := make(map[string]sim.VTimeInSec, len(n.nodeNames))
	hop := make(map[string]string, len(n.nodeNames))
	done := make(map[string]bool, len(n.nodeNames))

	for _, name := range n.nodeNames {
		dist[name] = inf
	}
	dist[src] = 0

	for {
		cur := ""
		for _, name := range n.nodeNames {
			if done[name] || dist[name] == inf {
				continue
			}

			if cur == "" || dist[name] < dist[cur] {
				cur = name
			}
		}

		if cur == "" {
			break
		}

		done[cur] = true

		for _, next := range n.Neighbors(cur) {
			d := dist[cur] + n.links[cur][next]
			if d >= dist[next] {
				continue
			}

			dist[next] = d
			if cur == src {
				hop[next] = next
			} else {
				hop[next] = hop[cur]
			}
		}
	}

	n.distance[src] = make(map[string]sim.VTimeInSec)
	n.firstHop[src] = make(map[string]string)

	for name, d := range dist {
		if name == src || d == inf {
			continue
		}

		n.distance[src][name] = d
		n.firstHop[src][name] = hop[name]
	}
}
