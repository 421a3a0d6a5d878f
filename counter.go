package securedraw

import (
	"math"

	"github.com/cockroachdb/errors"
)

// Counter is the bound-checked 8 bit counter of the first draw prototype. Overflow in
// either direction is a hard failure, never a wrap.
type Counter struct {
	Count uint8 `json:"count"`
}

func (c Counter) Increment() (Counter, error) {
	if c.Count == math.MaxUint8 {
		return c, errors.Wrapf(ErrArithmeticOverflow, "increment at %d", c.Count)
	}
	c.Count++
	return c, nil
}

func (c Counter) Decrement() (Counter, error) {
	if c.Count == 0 {
		return c, errors.Wrap(ErrArithmeticOverflow, "decrement at 0")
	}
	c.Count--
	return c, nil
}

func (c Counter) Set(v uint8) Counter {
	c.Count = v
	return c
}
