package gokernel

import (
	"time"

	"github.com/jdoe95/gokernel/kernel"
	"github.com/jdoe95/gokernel/port"
)

// Heartbeat wires a real-time ticker to a Kernel's HandleHeartbeat,
// playing the role of the timer interrupt source a native port would
// drive directly. It is ordinary ambient wiring, not part of the kernel
// core: nothing under kernel/ imports this file.
type Heartbeat struct {
	ticker *port.Ticker
}

// NewHeartbeat builds a Heartbeat that calls k.HandleHeartbeat once per
// interval. Call Start to begin ticking.
func NewHeartbeat(k *kernel.Kernel, interval time.Duration) *Heartbeat {
	return &Heartbeat{ticker: port.NewTicker(interval, k.HandleHeartbeat)}
}

// Start begins ticking on a dedicated goroutine.
func (h *Heartbeat) Start() { h.ticker.Start() }

// Stop halts ticking and waits for the goroutine to exit.
func (h *Heartbeat) Stop() { h.ticker.Stop() }
