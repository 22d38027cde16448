// Package scheduler decides the order (and concurrency) in which a
// Graph's nodes are handed to the execution engine. All three
// variants honor the same dependency ordering; they differ only in
// how much concurrency they extract from independent subgraphs.
package scheduler

import (
	"context"

	"github.com/luocf/inferunity/pkg/ir"
)

// NodeExecFunc executes a single node. The scheduler calls it once
// per node, in whatever order/concurrency its variant provides.
type NodeExecFunc func(ctx context.Context, n ir.Node) error

// Scheduler drives execution of a graph's nodes to completion.
type Scheduler interface {
	Name() string
	Run(ctx context.Context, g *ir.Graph, exec NodeExecFunc) error
}
