package graph

// TopologyMetrics computes degree, betweenness and closeness centrality and
// the clustering coefficient of every node over the simple undirected graph
// underlying the store: direction is dropped, parallel edges collapse and
// self-loops are ignored. Hyperedges do not contribute adjacency.
//
// Results are written back to each node's metadata and also returned.
func (s *Store) TopologyMetrics() map[string]TopologyMetrics {
	ids := s.nodeOrder
	n := len(ids)
	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	adj := make([][]int, n)
	seen := make([]map[int]bool, n)
	for i := range seen {
		seen[i] = make(map[int]bool)
	}
	link := func(a, b int) {
		if a == b || seen[a][b] {
			return
		}
		seen[a][b], seen[b][a] = true, true
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	for _, eid := range s.edgeOrder {
		e := s.edges[eid]
		link(index[e.Source], index[e.Target])
	}

	betweenness := brandes(adj)
	out := make(map[string]TopologyMetrics, n)
	for i, id := range ids {
		m := TopologyMetrics{
			BetweennessCentrality: betweenness[i],
			ClosenessCentrality:   closeness(adj, i),
			ClusteringCoefficient: clustering(adj, seen, i),
		}
		if n > 1 {
			m.DegreeCentrality = float64(len(adj[i])) / float64(n-1)
		}
		out[id] = m
		mCopy := m
		s.nodes[id].Metadata.TopologyMetrics = &mCopy
	}
	return out
}

// brandes returns normalized betweenness centrality for an undirected graph.
func brandes(adj [][]int) []float64 {
	n := len(adj)
	cb := make([]float64, n)
	for src := 0; src < n; src++ {
		stack := make([]int, 0, n)
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		sigma[src], dist[src] = 1, 0

		queue := []int{src}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != src {
				cb[w] += delta[w]
			}
		}
	}

	// Each unordered pair was counted from both ends.
	if n > 2 {
		scale := 1 / float64((n-1)*(n-2))
		for i := range cb {
			cb[i] *= scale
		}
	} else {
		for i := range cb {
			cb[i] = 0
		}
	}
	return cb
}

// closeness uses the Wasserman-Faust correction for disconnected graphs.
func closeness(adj [][]int, src int) float64 {
	n := len(adj)
	if n <= 1 {
		return 0
	}
	dist := make([]int, n)
	for i := range dist {
		dist[i] = -1
	}
	dist[src] = 0
	queue := []int{src}
	reached, total := 0, 0
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if dist[w] < 0 {
				dist[w] = dist[v] + 1
				reached++
				total += dist[w]
				queue = append(queue, w)
			}
		}
	}
	if total == 0 {
		return 0
	}
	r := float64(reached)
	return (r / float64(total)) * (r / float64(n-1))
}

func clustering(adj [][]int, seen []map[int]bool, v int) float64 {
	k := len(adj[v])
	if k < 2 {
		return 0
	}
	links := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if seen[adj[v][i]][adj[v][j]] {
				links++
			}
		}
	}
	return 2 * float64(links) / float64(k*(k-1))
}
