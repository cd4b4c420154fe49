// Dialogsync - Instance to Dialog Registry Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dialogsync

package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCapacity is the channel capacity used when none is configured.
const DefaultCapacity = 10

var (
	// ErrChannelClosed is returned by Enqueue after Close has been called.
	ErrChannelClosed = errors.New("work channel is closed")

	// ErrChannelFull is returned by Offer when a bounded channel has no free slot.
	ErrChannelFull = errors.New("work channel is full")
)

// Channel is a FIFO queue shared by many producers and many consumers.
//
// A bounded channel (capacity > 0) blocks Enqueue while it is full, which is
// the only flow control between producers and the consumer pool. An unbounded
// channel (capacity 0) never blocks Enqueue. Every item is delivered to exactly
// one consumer. After Close, consumers drain what is buffered and then see the
// channel as finished.
type Channel[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	closed   bool

	// Wake-up tokens. Each holds at most one pending signal and waiters loop
	// on the real condition, so a stale token only costs a re-check.
	readable chan struct{}
	writable chan struct{}
	done     chan struct{}

	depth prometheus.Gauge
}

// ChannelOption configures a Channel.
type ChannelOption func(*channelOptions)

type channelOptions struct {
	depth prometheus.Gauge
}

// WithDepthGauge reports the number of buffered items to g.
func WithDepthGauge(g prometheus.Gauge) ChannelOption {
	return func(o *channelOptions) { o.depth = g }
}

// NewChannel creates a channel holding at most capacity items.
// A capacity of 0 creates an unbounded channel. Negative values are treated as 0.
func NewChannel[T any](capacity int, opts ...ChannelOption) *Channel[T] {
	var o channelOptions
	for _, opt := range opts {
		opt(&o)
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Channel[T]{
		capacity: capacity,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
		done:     make(chan struct{}),
		depth:    o.depth,
	}
}

// Enqueue appends item, waiting for a free slot if the channel is bounded and
// full. It returns ctx.Err() if ctx ends first and ErrChannelClosed if the
// channel is closed before the item is accepted.
func (c *Channel[T]) Enqueue(ctx context.Context, item T) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrChannelClosed
		}
		if c.hasRoomLocked() {
			c.pushLocked(item)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		select {
		case <-c.writable:
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryEnqueue appends item only if that can be done without waiting.
func (c *Channel[T]) TryEnqueue(item T) bool {
	return c.Offer(item) == nil
}

// Offer is TryEnqueue with the reason for a rejection: ErrChannelClosed or
// ErrChannelFull.
func (c *Channel[T]) Offer(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if !c.hasRoomLocked() {
		return ErrChannelFull
	}
	c.pushLocked(item)
	return nil
}

// Dequeue removes the oldest item, waiting until one is available.
// ok is false once the channel is closed and fully drained. err is ctx.Err()
// if ctx ends while waiting.
func (c *Channel[T]) Dequeue(ctx context.Context) (item T, ok bool, err error) {
	for {
		c.mu.Lock()
		if len(c.items) > 0 {
			item = c.popLocked()
			c.mu.Unlock()
			return item, true, nil
		}
		if c.closed {
			c.mu.Unlock()
			return item, false, nil
		}
		c.mu.Unlock()

		select {
		case <-c.readable:
		case <-c.done:
		case <-ctx.Done():
			return item, false, ctx.Err()
		}
	}
}

// Close marks the channel as finished. Buffered items remain available to
// Dequeue. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cap returns the capacity, 0 for an unbounded channel.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel[T]) hasRoomLocked() bool {
	return c.capacity == 0 || len(c.items) < c.capacity
}

func (c *Channel[T]) pushLocked(item T) {
	c.items = append(c.items, item)
	signal(c.readable)
	if c.hasRoomLocked() {
		signal(c.writable)
	}
	c.observeLocked()
}

func (c *Channel[T]) popLocked() T {
	item := c.items[0]
	var zero T
	c.items[0] = zero
	c.items = c.items[1:]
	if len(c.items) == 0 {
		// Drop the backing array so an unbounded channel does not pin memory.
		c.items = nil
	} else {
		signal(c.readable)
	}
	signal(c.writable)
	c.observeLocked()
	return item
}

func (c *Channel[T]) observeLocked() {
	if c.depth != nil {
		c.depth.Set(float64(len(c.items)))
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
