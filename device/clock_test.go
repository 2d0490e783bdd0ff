package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendClockMonotonicAcrossWrap(t *testing.T) {
	d := &Record{}

	first := d.extendClock(1000)
	require.Equal(t, int64(1000*1000), first)

	second := d.extendClock(5000)
	require.Equal(t, first+4000*1000, second)

	// Wrap the 32-bit counter back around near zero.
	near := uint32(math.MaxUint32 - 500)
	d.lastDeviceTS = near
	base := d.deviceClockNS
	wrapped := d.extendClock(500)
	require.Equal(t, base+1001*1000, wrapped)
	require.GreaterOrEqual(t, wrapped, base)
}

func TestExtendClockNeverDecreases(t *testing.T) {
	d := &Record{}
	prev := d.extendClock(0)
	for _, ts := range []uint32{10, 20, 5, math.MaxUint32, 1, 1000} {
		cur := d.extendClock(ts)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}
