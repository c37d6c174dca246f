package factors

import (
	"testing"

	"go.viam.com/test"
)

func TestAccumulatorFlushesEveryNCycles(t *testing.T) {
	acc := NewAccumulator(3)
	acc.Add(TargetPlane{})
	test.That(t, acc.Tick(), test.ShouldBeNil)
	test.That(t, acc.Tick(), test.ShouldBeNil)
	flushed := acc.Tick()
	test.That(t, len(flushed), test.ShouldEqual, 1)
}

func TestAccumulatorClearsAfterFlush(t *testing.T) {
	acc := NewAccumulator(1)
	acc.Add(TargetPlane{})
	first := acc.Tick()
	test.That(t, len(first), test.ShouldEqual, 1)
	second := acc.Tick()
	test.That(t, len(second), test.ShouldEqual, 0)
}
