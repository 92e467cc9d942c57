package maxflow

// MaxFlow 计算最大流。算法维护源点树与汇点树，交替执行生长、增广和收养三个阶段，
// 结束后 Segment 给出最小割。图只能求解一次。
func (g *Graph) MaxFlow() (float64, error) {
	if g.solved {
		return g.flow, nil
	}
	g.init()

	current := -1
	for {
		i := current
		if i >= 0 {
			g.nodes[i].active = false
			if g.nodes[i].parent == noParent {
				i = -1
			}
		}
		if i < 0 {
			if i = g.nextActive(); i < 0 {
				break
			}
		}

		middle := g.grow(i)
		g.time++

		if middle >= 0 {
			// 增广后继续从同一节点生长
			g.nodes[i].active = true
			current = i
			g.augment(middle)
			g.adopt()
		} else {
			current = -1
		}
	}

	g.solved = true
	return g.flow, nil
}

func (g *Graph) init() {
	g.queue = g.queue[:0]
	g.orphans = g.orphans[:0]
	g.time = 0
	for i := range g.nodes {
		n := &g.nodes[i]
		n.active = false
		n.ts = 0
		switch {
		case n.trCap > 0:
			n.isSink = false
			n.parent = terminal
			n.dist = 1
			g.setActive(i)
		case n.trCap < 0:
			n.isSink = true
			n.parent = terminal
			n.dist = 1
			g.setActive(i)
		default:
			n.parent = noParent
		}
	}
}

func (g *Graph) setActive(i int) {
	n := &g.nodes[i]
	if n.active {
		return
	}
	n.active = true
	g.queue = append(g.queue, i)
}

func (g *Graph) nextActive() int {
	for len(g.queue) > 0 {
		i := g.queue[0]
		g.queue = g.queue[1:]
		g.nodes[i].active = false
		if g.nodes[i].parent != noParent {
			return i
		}
	}
	return -1
}

// grow 从活动节点 i 扩展所在的树，找到连接两棵树的弧时返回该弧（方向为源点树 -> 汇点树）
func (g *Graph) grow(i int) int {
	n := &g.nodes[i]
	for a := n.first; a >= 0; a = g.arcs[a].next {
		out := &g.arcs[a]
		capacity := out.rCap
		if n.isSink {
			capacity = g.arcs[out.sister].rCap
		}
		if capacity <= 0 {
			continue
		}

		j := out.head
		nj := &g.nodes[j]
		switch {
		case nj.parent == noParent:
			nj.isSink = n.isSink
			nj.parent = out.sister
			nj.ts = n.ts
			nj.dist = n.dist + 1
			g.setActive(j)
		case nj.isSink != n.isSink:
			if n.isSink {
				return out.sister
			}
			return a
		case nj.ts <= n.ts && nj.dist > n.dist:
			// 缩短到终端的路径
			nj.parent = out.sister
			nj.ts = n.ts
			nj.dist = n.dist + 1
		}
	}
	return -1
}

// augment 沿经过 middle 的路径推送瓶颈流量，饱和的树边使其子节点成为孤儿
func (g *Graph) augment(middle int) {
	arcs := g.arcs
	bottleneck := arcs[middle].rCap

	i := arcs[arcs[middle].sister].head
	for {
		a := g.nodes[i].parent
		if a == terminal {
			break
		}
		if c := arcs[arcs[a].sister].rCap; c < bottleneck {
			bottleneck = c
		}
		i = arcs[a].head
	}
	if c := g.nodes[i].trCap; c < bottleneck {
		bottleneck = c
	}

	i = arcs[middle].head
	for {
		a := g.nodes[i].parent
		if a == terminal {
			break
		}
		if c := arcs[a].rCap; c < bottleneck {
			bottleneck = c
		}
		i = arcs[a].head
	}
	if c := -g.nodes[i].trCap; c < bottleneck {
		bottleneck = c
	}

	arcs[arcs[middle].sister].rCap += bottleneck
	arcs[middle].rCap -= bottleneck

	i = arcs[arcs[middle].sister].head
	for {
		a := g.nodes[i].parent
		if a == terminal {
			break
		}
		arcs[a].rCap += bottleneck
		arcs[arcs[a].sister].rCap -= bottleneck
		if arcs[arcs[a].sister].rCap <= 0 {
			g.setOrphan(i)
		}
		i = arcs[a].head
	}
	g.nodes[i].trCap -= bottleneck
	if g.nodes[i].trCap <= 0 {
		g.setOrphan(i)
	}

	i = arcs[middle].head
	for {
		a := g.nodes[i].parent
		if a == terminal {
			break
		}
		arcs[arcs[a].sister].rCap += bottleneck
		arcs[a].rCap -= bottleneck
		if arcs[a].rCap <= 0 {
			g.setOrphan(i)
		}
		i = arcs[a].head
	}
	g.nodes[i].trCap += bottleneck
	if g.nodes[i].trCap >= 0 {
		g.setOrphan(i)
	}

	g.flow += bottleneck
}

func (g *Graph) setOrphan(i int) {
	g.nodes[i].parent = orphan
	g.orphans = append(g.orphans, i)
}

// adopt 为每个孤儿寻找同一棵树中仍连到终端的新父节点，找不到则使其成为自由节点
func (g *Graph) adopt() {
	for len(g.orphans) > 0 {
		last := len(g.orphans) - 1
		i := g.orphans[last]
		g.orphans = g.orphans[:last]
		g.processOrphan(i)
	}
}

// residualToward 返回沿 a0 反方向（a0.head -> 孤儿）在孤儿所在树中可用的残余容量
func (g *Graph) residualToward(a0 int, sink bool) float64 {
	if sink {
		return g.arcs[a0].rCap
	}
	return g.arcs[g.arcs[a0].sister].rCap
}

func (g *Graph) processOrphan(i int) {
	arcs := g.arcs
	n := &g.nodes[i]
	sink := n.isSink

	best := noParent
	bestDist := infiniteDist

	for a0 := n.first; a0 >= 0; a0 = arcs[a0].next {
		if g.residualToward(a0, sink) <= 0 {
			continue
		}
		j := arcs[a0].head
		nj := &g.nodes[j]
		if nj.isSink != sink || nj.parent == noParent {
			continue
		}

		// 检查 j 是否仍连到终端
		d := 0
		k := j
		for {
			nk := &g.nodes[k]
			if nk.ts == g.time {
				d += nk.dist
				break
			}
			a := nk.parent
			d++
			if a == terminal {
				nk.ts = g.time
				nk.dist = 1
				break
			}
			if a == orphan {
				d = infiniteDist
				break
			}
			k = arcs[a].head
		}

		if d >= infiniteDist {
			continue
		}
		if d < bestDist {
			best = a0
			bestDist = d
		}
		for k = j; g.nodes[k].ts != g.time; k = arcs[g.nodes[k].parent].head {
			g.nodes[k].ts = g.time
			g.nodes[k].dist = d
			d--
		}
	}

	n.parent = best
	if best != noParent {
		n.ts = g.time
		n.dist = bestDist + 1
		return
	}

	for a0 := n.first; a0 >= 0; a0 = arcs[a0].next {
		j := arcs[a0].head
		nj := &g.nodes[j]
		if nj.isSink != sink || nj.parent == noParent {
			continue
		}
		if g.residualToward(a0, sink) > 0 {
			g.setActive(j)
		}
		if a := nj.parent; a != terminal && a != orphan && arcs[a].head == i {
			g.setOrphan(j)
		}
	}
}
