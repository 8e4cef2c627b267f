// Package gokernel implements a fixed-priority preemptive real-time
// micro-kernel simulated entirely in Go: a scheduler with per-priority
// ready rings, a thread lifecycle manager, a blocking/wakeup protocol
// shared by the synchronization primitives in package sync, and a
// thread-scoped coalescing allocator.
//
// The kernel itself never touches a goroutine, a channel, or a timer: all
// of that lives behind the port.Port interface, which supplies stack
// initialization, interrupt masking, and the actual context-switch
// trigger. package port's GoroutinePort backs the interface with real
// goroutines for testing and embedding in ordinary Go programs; a
// bare-metal embedding would supply its own.
//
// Root-level code (this file, errors.go, metrics.go, heartbeat.go) is
// re-exported plumbing: the types that matter live in package kernel and
// package sync.
package gokernel
