// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

/*
Package bus is the downstream sync transport, built on Watermill.

Two topics carry work out of the process:

	<prefix>.instance.changed    InstanceChangeEvent, consumed by the dialog registry
	<prefix>.partition.planned   PartitionPlan, consumed by the partition expander

Transport implements the pipeline handlers: a worker that dequeues an
InstanceChangeEvent publishes it to the instance topic, and a worker that
dequeues a PartitionPlan publishes it to the partition topic. The Router runs
the partition expander on the partition topic, so a large backfill is spread
across every replica subscribed to the durable consumer.

# Backends

With NATS enabled the bus uses JetStream through watermill-nats. The stream
is provisioned at startup and can be served by an embedded NATS server for
single-node deployments. With NATS disabled an in-process gochannel is used;
nothing leaves the process and a log sink stands in for the registry.

# Delivery

Delivery is at-least-once. Every message carries a fresh UUID as its
Nats-Msg-Id. Handlers downstream must be idempotent.
*/
package bus
