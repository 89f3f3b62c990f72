/*
Package events provides an in-memory event broker for Atlas's task
lifecycle notifications.

The broker is topic-agnostic: every subscriber receives every event and
filters by Type itself. Delivery is best-effort — a full subscriber
buffer skips that event rather than blocking the publisher, since the
executor's dispatch loop must never stall on a slow observer.

# Event Types

	task.provisioning  - a node was just transitioned to PROVISIONING
	task.provisioned   - a node reached PROVISIONED
	task.deleting      - a node was just transitioned to DELETING
	task.deleted       - a node reached DELETED
	task.failed        - a node's Run returned an error
	task.retried       - a FAILED node was re-armed for another attempt
	run.complete       - every node in the graph reached its terminal
	                      state for the active phase

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			fmt.Println(ev.Type, ev.Message)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventTaskFailed, Message: node.ID})

# Limitations

In-memory only, no persistence, no replay, no delivery guarantee. A
consumer that needs a durable audit trail should subscribe and write
events to the store itself.
*/
package events
