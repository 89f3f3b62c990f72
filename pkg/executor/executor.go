// Package executor implements the top-level event loop: it polls the
// execution graph, dispatches ready tasks to a bounded worker pool, drains
// completions, and retries failures until the graph reaches a terminal
// state for the active phase.
//
// The loop is a ticker-based polling loop (time.NewTicker plus a select
// over ticker.C / ctx.Done(), structured logging of each cycle). Worker dispatch and completion draining follow
// the original Python prototype's ThreadPoolExecutor + result queue shape,
// translated idiomatically into a semaphore-bounded goroutine pool plus a
// buffered Go channel of results.
//
// Precondition: at most one Executor operates on a given cluster at a time.
// This is not enforced here — it is an operational invariant.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/atlas/pkg/config"
	"github.com/cuemby/atlas/pkg/events"
	"github.com/cuemby/atlas/pkg/execgraph"
	"github.com/cuemby/atlas/pkg/graphbuilder"
	"github.com/cuemby/atlas/pkg/log"
	"github.com/cuemby/atlas/pkg/metrics"
	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/task"
	"github.com/cuemby/atlas/pkg/types"
	"github.com/rs/zerolog"
)

// Executor is the bounded-concurrency dispatcher described in the
// component design: it owns all in-memory writes to task state, receiving
// worker results as plain data over a channel rather than letting workers
// mutate shared state directly.
type Executor struct {
	store    storage.Store
	provider provider.Provider
	broker   *events.Broker
	cfg      config.Executor
}

// New returns an Executor wired to store, prov, and an optional event
// broker (nil is accepted; events are simply not published).
func New(store storage.Store, prov provider.Provider, broker *events.Broker, cfg config.Executor) *Executor {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = config.DefaultExecutor().PoolSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = config.DefaultExecutor().PollInterval
	}
	return &Executor{store: store, provider: prov, broker: broker, cfg: cfg}
}

// Run loads clusterID's graph and drives it to completion for phase,
// blocking until done or ctx is cancelled. This is the library entry point
// named in the external interfaces: cmd/atlas wraps it with
// provision/deprovision subcommands.
func (e *Executor) Run(ctx context.Context, clusterID string, phase types.Phase) error {
	logger := log.WithClusterID(clusterID)

	builder := graphbuilder.New(e.store)
	graph, err := builder.Load(ctx, clusterID)
	if err != nil {
		return err
	}

	action := types.ActionProvision
	if phase == types.PhaseDelete {
		action = types.ActionDelete
	}

	sem := make(chan struct{}, e.cfg.PoolSize)
	results := make(chan task.Result, e.cfg.PoolSize*4)
	var wg sync.WaitGroup

	collector := metrics.NewCollector(graph, clusterID, phase, e.cfg.PollInterval)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		metrics.TicksTotal.WithLabelValues(clusterID, string(phase)).Inc()

		e.dispatchTick(ctx, graph, phase, action, sem, results, &wg, logger)
		e.drainResults(results, logger)
		e.retryFailed(graph, phase, logger)
		collector.Sample()

		logger.Info().Str("phase", string(phase)).Msg(graph.Info(phase))

		if graph.Complete(phase) {
			wg.Wait()
			e.drainResults(results, logger)
			if e.broker != nil {
				e.broker.Publish(&events.Event{Type: events.EventRunComplete, Message: graph.Info(phase)})
			}
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
	}
}

// dispatchTick submits every currently-runnable task for phase onto the
// worker pool, transitioning each to its in-flight state synchronously
// before handoff so it cannot be picked up twice. Each worker goroutine
// only reads n's immutable fields (ID, Type, DataCentre) and returns its
// outcome as a task.Result over results; it never writes to n itself.
func (e *Executor) dispatchTick(
	ctx context.Context,
	graph *execgraph.Graph,
	phase types.Phase,
	action types.Action,
	sem chan struct{},
	results chan task.Result,
	wg *sync.WaitGroup,
	logger zerolog.Logger,
) {
	var runnable []*task.Node
	if phase == types.PhaseProvision {
		runnable = graph.RunnableProvisionTasks()
	} else {
		runnable = graph.RunnableDeleteTasks()
	}

	inFlight := types.StateProvisioning
	if phase == types.PhaseDelete {
		inFlight = types.StateDeleting
	}

	for _, n := range runnable {
		if err := task.SetState(e.store, n, inFlight); err != nil {
			logger.Error().Err(err).Str("node_id", n.ID).Msg("failed to mark task in-flight")
			continue
		}
		if e.broker != nil {
			evType := events.EventTaskProvisioning
			if phase == types.PhaseDelete {
				evType = events.EventTaskDeleting
			}
			e.broker.Publish(&events.Event{Type: evType, Message: n.ID, Metadata: map[string]string{"type": string(n.Type)}})
		}

		wg.Add(1)
		sem <- struct{}{}
		metrics.QueueDepth.Inc()
		go func(n *task.Node) {
			defer wg.Done()
			defer func() { <-sem; metrics.QueueDepth.Dec() }()

			timer := metrics.NewTimer()
			result := task.Run(ctx, e.store, n, action, e.provider)
			outcome := "success"
			if result.Err != nil {
				outcome = "failure"
			}
			timer.ObserveDurationVec(metrics.TaskDuration, string(n.Type), string(action), outcome)

			results <- result
		}(n)
	}
}

// drainResults drains every completion currently buffered, without
// blocking, and performs the state and payload writes the corresponding
// Result calls for. This is the only place a node's cached state or
// payload is mutated, and it only ever runs on the dispatcher goroutine —
// the worker goroutines that produced these results have already returned
// their outcome as data and touch nothing in n afterward.
func (e *Executor) drainResults(results chan task.Result, logger zerolog.Logger) {
	for {
		select {
		case r := <-results:
			if applyErr := task.Apply(e.store, r); applyErr != nil {
				logger.Error().Err(applyErr).Str("node_id", r.Node.ID).Msg("failed to apply task result")
			}

			if r.Err != nil {
				logger.Error().Err(r.Err).Str("node_id", r.Node.ID).Str("type", string(r.Node.Type)).Msg("task execution failed")
				if e.broker != nil {
					e.broker.Publish(&events.Event{Type: events.EventTaskFailed, Message: r.Err.Error(), Metadata: map[string]string{"node_id": r.Node.ID}})
				}
			} else if e.broker != nil {
				evType := events.EventTaskProvisioned
				if r.NextState == types.StateDeleted {
					evType = events.EventTaskDeleted
				}
				e.broker.Publish(&events.Event{Type: evType, Message: r.Node.ID, Metadata: map[string]string{"type": string(r.Node.Type)}})
			}
		default:
			return
		}
	}
}

// retryFailed re-arms every FAILED node for the next tick. Unbounded, no
// backoff, exactly as specified: a task is retried every tick until it
// succeeds. Within a single Run call every failure belongs to the same
// phase, so whether a failed task had already been PROVISIONED before
// failing is simply "was this a DELETE run" — PROVISION-phase failures
// never reached PROVISIONED, DELETE-phase failures always had.
func (e *Executor) retryFailed(graph *execgraph.Graph, phase types.Phase, logger zerolog.Logger) {
	wasProvisioned := phase == types.PhaseDelete
	for _, n := range graph.NodesInState(types.StateFailed) {
		if err := task.RetryFailed(e.store, n, wasProvisioned); err != nil {
			logger.Error().Err(err).Str("node_id", n.ID).Msg("failed to re-arm task")
			continue
		}
		metrics.RetriesTotal.WithLabelValues(string(n.Type)).Inc()
		if e.broker != nil {
			e.broker.Publish(&events.Event{Type: events.EventTaskRetried, Message: n.ID})
		}
	}
}
