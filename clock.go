package securedraw

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// DefaultSlotDuration matches the slot time of the ledger the draw protocol was
// designed against.
const DefaultSlotDuration = 400 * time.Millisecond

// Clock reports the host ledger's logical clock. Slots only move forward.
type Clock interface {
	Slot(context.Context) (uint64, error)
}

var (
	_ Clock = (*ManualClock)(nil)
	_ Clock = WallClock{}
)

// ManualClock is a Clock advanced explicitly by its owner.
type ManualClock struct {
	slot *atomic.Uint64
}

func NewManualClock(slot uint64) *ManualClock {
	return &ManualClock{slot: atomic.NewUint64(slot)}
}

func (c *ManualClock) Slot(context.Context) (uint64, error) {
	return c.slot.Load(), nil
}

// Advance moves the clock forward by n slots and returns the new slot.
func (c *ManualClock) Advance(n uint64) uint64 {
	return c.slot.Add(n)
}

// WallClock derives slots from elapsed wall time since Genesis.
type WallClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
}

func (c WallClock) Slot(context.Context) (uint64, error) {
	d := c.SlotDuration
	if d <= 0 {
		d = DefaultSlotDuration
	}
	elapsed := time.Since(c.Genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / d), nil
}
