/*
Package log provides structured logging for Atlas using zerolog.

The log package wraps zerolog to provide structured logging with
context-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity for production debugging.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Context loggers:

	clusterLog := log.WithClusterID(clusterID)
	clusterLog.Info().Msg("run started")

	taskLog := log.WithTaskType(string(node.Type))
	taskLog.Error().Err(err).Str("node_id", node.ID).Msg("task execution failed")

# Design Patterns

Global logger pattern: a single package-level Logger instance,
initialized once in cmd/atlas before any work begins, accessible from
every package without being threaded through constructors.

Context logger pattern: WithClusterID/WithTaskType/WithNodeID/
WithComponent return child loggers with one field pre-bound, so callers
stop repeating the same Str(...) at every call site.
*/
package log
