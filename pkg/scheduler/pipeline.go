package scheduler

import (
	"context"
	"sync"

	"github.com/luocf/inferunity/pkg/ir"
)

// Pipeline runs a fixed pool of workers pulling from a ready queue: a
// node is pushed onto the queue the instant its last unexecuted
// dependency completes, rather than waiting for an entire wave like
// Parallel. This keeps workers busy across graphs with uneven branch
// widths, at the cost of a bit more bookkeeping.
type Pipeline struct {
	// Workers is the number of concurrent node executions. Defaults
	// to 4 if unset.
	Workers int
}

func (Pipeline) Name() string { return "pipeline" }

func (p Pipeline) Run(ctx context.Context, g *ir.Graph, exec NodeExecFunc) error {
	order, err := g.TopologicalSort()
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return nil
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}

	indegree := make(map[ir.NodeID]int, len(order))
	dependents := make(map[ir.NodeID][]ir.NodeID, len(order))
	for _, n := range order {
		deps := 0
		seen := make(map[ir.NodeID]bool)
		for _, in := range n.Inputs() {
			producer, ok := in.Producer()
			if !ok || seen[producer.ID()] {
				continue
			}
			seen[producer.ID()] = true
			deps++
			dependents[producer.ID()] = append(dependents[producer.ID()], n.ID())
		}
		indegree[n.ID()] = deps
	}

	ready := make(chan ir.Node, len(order))
	for _, n := range order {
		if indegree[n.ID()] == 0 {
			ready <- n
		}
	}

	var (
		mu        sync.Mutex
		firstErr  error
		remaining = len(order)
		done      = make(chan struct{})
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	finish := func(n ir.Node, runErr error) {
		mu.Lock()
		defer mu.Unlock()
		if runErr != nil {
			if firstErr == nil {
				firstErr = runErr
				cancel()
			}
		}
		remaining--
		if remaining == 0 {
			close(done)
			return
		}
		if runErr == nil {
			for _, depID := range dependents[n.ID()] {
				indegree[depID]--
				if indegree[depID] == 0 {
					if dn, ok := g.Node(depID); ok {
						ready <- dn
					}
				}
			}
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				case n := <-ready:
					finish(n, exec(ctx, n))
				}
			}
		}()
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
