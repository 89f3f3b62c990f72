package metrics

import (
	"context"
	"time"

	"github.com/cuemby/atlas/pkg/execgraph"
	"github.com/cuemby/atlas/pkg/types"
)

// Collector periodically refreshes the gauge metrics from an execgraph.Graph.
// Grounded on the polling-ticker idiom used elsewhere in this codebase for
// background refresh loops.
type Collector struct {
	graph     *execgraph.Graph
	clusterID string
	phase     types.Phase
	interval  time.Duration
}

// NewCollector returns a Collector that samples graph every interval.
func NewCollector(graph *execgraph.Graph, clusterID string, phase types.Phase, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{graph: graph, clusterID: clusterID, phase: phase, interval: interval}
}

// Run blocks, sampling on each tick until ctx is cancelled. Only safe to
// use against a graph no other goroutine is mutating concurrently; the
// executor instead calls Sample directly from its own dispatcher loop,
// where graph state is only ever touched by that one goroutine.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sample()
		case <-ctx.Done():
			return
		}
	}
}

// Sample refreshes the gauge metrics from a single pass over the graph.
func (c *Collector) Sample() {
	counts := make(map[[2]string]int)
	for _, n := range c.graph.Nodes() {
		counts[[2]string{string(n.Type), string(n.State())}]++
	}
	for key, count := range counts {
		NodesTotal.WithLabelValues(key[0], key[1]).Set(float64(count))
	}
	PercentComplete.WithLabelValues(c.clusterID, string(c.phase)).Set(c.graph.PercentComplete(c.phase))
}
