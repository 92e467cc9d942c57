// Package maxflow 实现带源点和汇点的 Boykov-Kolmogorov 最大流/最小割
package maxflow

import (
	"math"

	"github.com/pkg/errors"
)

// ErrMalformedGraph 负容量、非有限容量或越界节点，属于调用方的逻辑错误
var ErrMalformedGraph = errors.New("maxflow: malformed graph")

// Terminal 节点在最小割中所属的一侧
type Terminal int

const (
	Source Terminal = iota
	Sink
)

func (t Terminal) String() string {
	if t == Source {
		return "source"
	}
	return "sink"
}

// 父弧的特殊取值
const (
	noParent = -1
	terminal = -2
	orphan   = -3
)

const infiniteDist = math.MaxInt32

type node struct {
	first  int     // 第一条出弧，-1 表示无
	parent int     // 搜索树中的父弧
	trCap  float64 // >0 为源点残余容量，<0 为汇点残余容量
	ts     int     // 距离标记的时间戳
	dist   int     // 到终端的距离
	isSink bool
	active bool
}

type arc struct {
	head   int
	next   int
	sister int
	rCap   float64
}

// Graph 容量图，节点编号 [0, n)，源点与汇点隐式存在
type Graph struct {
	nodes []node
	arcs  []arc
	flow  float64

	queue   []int
	orphans []int
	time    int
	solved  bool
}

// New 创建 n 个节点的图，edgeHint 为预估的无向边数
func New(n, edgeHint int) *Graph {
	g := &Graph{
		nodes: make([]node, n),
		arcs:  make([]arc, 0, 2*edgeHint),
	}
	for i := range g.nodes {
		g.nodes[i].first = -1
		g.nodes[i].parent = noParent
	}
	return g
}

// NodeCount 节点数
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// AddTWeights 为节点 i 增加源点->i 容量 capSource 与 i->汇点 容量 capSink
func (g *Graph) AddTWeights(i int, capSource, capSink float64) error {
	if err := g.checkNode(i); err != nil {
		return err
	}
	if err := checkCapacity(capSource); err != nil {
		return errors.Wrapf(err, "source capacity of node %d", i)
	}
	if err := checkCapacity(capSink); err != nil {
		return errors.Wrapf(err, "sink capacity of node %d", i)
	}

	n := &g.nodes[i]
	if delta := n.trCap; delta > 0 {
		capSource += delta
	} else {
		capSink -= delta
	}
	g.flow += math.Min(capSource, capSink)
	n.trCap = capSource - capSink
	return nil
}

// AddEdge 增加 i->j 容量 capacity 与 j->i 容量 reverse 的一对弧
func (g *Graph) AddEdge(i, j int, capacity, reverse float64) error {
	if err := g.checkNode(i); err != nil {
		return err
	}
	if err := g.checkNode(j); err != nil {
		return err
	}
	if i == j {
		return errors.Wrapf(ErrMalformedGraph, "self loop on node %d", i)
	}
	if err := checkCapacity(capacity); err != nil {
		return errors.Wrapf(err, "edge %d->%d", i, j)
	}
	if err := checkCapacity(reverse); err != nil {
		return errors.Wrapf(err, "edge %d->%d", j, i)
	}

	a := len(g.arcs)
	b := a + 1
	g.arcs = append(g.arcs,
		arc{head: j, next: g.nodes[i].first, sister: b, rCap: capacity},
		arc{head: i, next: g.nodes[j].first, sister: a, rCap: reverse},
	)
	g.nodes[i].first = a
	g.nodes[j].first = b
	return nil
}

// Flow 当前已推送的流量
func (g *Graph) Flow() float64 {
	return g.flow
}

// Segment 返回节点所属一侧：源点搜索树中的节点为 Source，其余（含自由节点）为 Sink
func (g *Graph) Segment(i int) Terminal {
	n := &g.nodes[i]
	if n.parent != noParent && !n.isSink {
		return Source
	}
	return Sink
}

func (g *Graph) checkNode(i int) error {
	if i < 0 || i >= len(g.nodes) {
		return errors.Wrapf(ErrMalformedGraph, "node %d out of range [0,%d)", i, len(g.nodes))
	}
	if g.solved {
		return errors.Wrap(ErrMalformedGraph, "graph modified after MaxFlow")
	}
	return nil
}

func checkCapacity(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return errors.Wrapf(ErrMalformedGraph, "non-finite capacity %v", c)
	}
	if c < 0 {
		return errors.Wrapf(ErrMalformedGraph, "negative capacity %v", c)
	}
	return nil
}
