// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package pipeline connects work producers to the downstream sync transport.

Producers (one update stream per organization and any number of migration
planner invocations) write models.WorkItem values into a shared Channel. A Pool
of workers drains the channel and hands each item to a Handler, normally a
Dispatcher that forwards instance events and partition plans to the bus.

# Flow Control

A bounded Channel blocks Enqueue while it is full. That blocking is the only
backpressure in the system: slow consumers stall the producers instead of
letting memory grow. Capacity 0 selects an unbounded channel for callers that
must never block.

# Failure Handling

The pool never retries. A failing or panicking handler is logged with the
worker index and the item fields, counted, and the worker moves on to the next
item. Delivery is at least once end to end; retries happen upstream (stream
re-polls, migration replans) and downstream handlers are idempotent.

# Shutdown

	ch.Close()        // no more items will be produced
	err := pool.Run() // returns after the buffer is drained

Canceling the context passed to Run stops idle workers immediately and is
visible to in-flight handlers through their context.
*/
package pipeline
