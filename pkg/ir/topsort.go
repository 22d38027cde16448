package ir

// TopologicalSort orders live Nodes using Kahn's algorithm over
// node in-degree computed from value-producer edges (§4.1). Ties are
// broken by NodeID so that repeated calls on an unchanged graph are
// deterministic — this is what lets the Topological scheduler produce
// repeatable execution order, and mirrors the ring-buffer/insertion-sort
// shape of pkg/graph/graph.go's TopologicalSort in the teacher repo,
// generalized from a node/edge list to value-producer edges.
func (g *Graph) TopologicalSort() ([]Node, error) {
	live := g.Nodes()
	numNodes := len(live)
	if numNodes == 0 {
		return []Node{}, nil
	}

	inDegree := make(map[NodeID]int, numNodes)
	adjacency := make(map[NodeID][]NodeID, numNodes)

	for _, n := range live {
		inDegree[n.id] = 0
	}

	// An edge exists from producer(v) to consumer(v) for every input v
	// of a node, counted once per distinct producer->consumer pair
	// traversal (duplicate inputs from the same producer still count
	// once towards in-degree since Kahn's algorithm only needs to know
	// when ALL distinct dependency edges have resolved).
	seenEdge := make(map[[2]NodeID]bool)
	for _, n := range live {
		for _, vID := range n.InputIDs() {
			v, ok := g.Value(vID)
			if !ok {
				continue
			}
			prod, hasProd := v.Producer()
			if !hasProd {
				continue
			}
			key := [2]NodeID{prod.id, n.id}
			if seenEdge[key] {
				continue
			}
			seenEdge[key] = true
			adjacency[prod.id] = append(adjacency[prod.id], n.id)
			inDegree[n.id]++
		}
	}

	orphans := make([]NodeID, 0, numNodes)
	for _, n := range live {
		if inDegree[n.id] == 0 {
			orphans = append(orphans, n.id)
		}
	}
	insertionSortNodeIDs(orphans)

	queue := make([]NodeID, numNodes)
	queueEnd := len(orphans)
	copy(queue, orphans)
	queueStart := 0

	order := make([]Node, 0, numNodes)
	for queueStart < queueEnd {
		current := queue[queueStart]
		queueStart++
		n, ok := g.Node(current)
		if !ok {
			continue
		}
		order = append(order, n)

		neighbors := append([]NodeID(nil), adjacency[current]...)
		insertionSortNodeIDs(neighbors)
		for _, neighbor := range neighbors {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue[queueEnd] = neighbor
				queueEnd++
			}
		}
	}

	if len(order) != numNodes {
		return nil, ErrCycleDetected
	}
	return order, nil
}

func insertionSortNodeIDs(ids []NodeID) {
	for i := 1; i < len(ids); i++ {
		key := ids[i]
		j := i - 1
		for j >= 0 && ids[j] > key {
			ids[j+1] = ids[j]
			j--
		}
		ids[j+1] = key
	}
}
