package undo

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/teranos/lathe/errors"
)

// Diff reports the structural difference between the state held by two
// composites, ignoring labels and timestamps. An empty string means equal.
func Diff(a, b Composite) string {
	return cmp.Diff(a.Slices, b.Slices, cmpopts.EquateEmpty())
}

// VerifyRoundTrip checks that restoring a fresh capture and capturing again
// yields the same state. A failure means some participant leaves part of
// its state out of Snapshot or Restore. The stacks are not touched.
func (c *Coordinator) VerifyRoundTrip() error {
	before := c.Capture("verify")
	if err := c.apply(before, before); err != nil {
		return errors.Wrap(err, "round-trip restore")
	}
	after := c.Capture("verify")
	if diff := Diff(before, after); diff != "" {
		return errors.WithDetail(
			errors.AssertionFailedf("snapshot round-trip changed state"),
			diff)
	}
	return nil
}
