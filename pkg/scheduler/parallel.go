package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/luocf/inferunity/pkg/ir"
)

// Parallel groups nodes into waves by dependency depth and runs every
// node within a wave concurrently, bounded by MaxConcurrency. Waves
// themselves still execute strictly in order, so a node never starts
// before any of its producers has finished.
type Parallel struct {
	// MaxConcurrency caps goroutines per wave. 0 means unbounded.
	MaxConcurrency int
}

func (Parallel) Name() string { return "parallel" }

func (p Parallel) Run(ctx context.Context, g *ir.Graph, exec NodeExecFunc) error {
	order, err := g.TopologicalSort()
	if err != nil {
		return err
	}
	waves := groupByDepth(order)

	for _, wave := range waves {
		eg, egCtx := errgroup.WithContext(ctx)
		if p.MaxConcurrency > 0 {
			eg.SetLimit(p.MaxConcurrency)
		}
		for _, n := range wave {
			n := n
			eg.Go(func() error {
				return exec(egCtx, n)
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// groupByDepth assigns every node a depth equal to one more than the
// deepest depth among its input values' producers, then buckets nodes
// by that depth. Nodes in the same bucket share no producer/consumer
// relationship and can run concurrently.
func groupByDepth(order []ir.Node) [][]ir.Node {
	depth := make(map[ir.NodeID]int, len(order))
	maxDepth := 0
	for _, n := range order {
		d := 0
		for _, in := range n.Inputs() {
			if producer, ok := in.Producer(); ok {
				if pd := depth[producer.ID()] + 1; pd > d {
					d = pd
				}
			}
		}
		depth[n.ID()] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]ir.Node, maxDepth+1)
	for _, n := range order {
		d := depth[n.ID()]
		waves[d] = append(waves[d], n)
	}
	return waves
}
