package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntBoxingMatchesEmittedImmediate(t *testing.T) {
	// The backend materializes Int constants as exactly this bit pattern
	// (tag 0b001 at bit 48 over the low 32 payload bits), so the Go-side
	// encoder must agree with it bit for bit.
	require.Equal(t, uint64(0x0001_0000_0000_0003), uint64(Int(3)))
	require.Equal(t, uint64(0x0001_0000_FFFF_FFFF), uint64(Int(-1)))

	require.True(t, Int(0).IsInt())
	require.False(t, Int(0).IsPointer())
	require.False(t, Int(0).IsDouble())
	require.Equal(t, TagInt, Int(42).Tag())
	require.Equal(t, int32(-7), Int(-7).AsInt())
}

func TestPointerBoxing(t *testing.T) {
	p := Pointer(0xDEAD_BEEF)
	require.True(t, p.IsPointer())
	require.False(t, p.IsInt())
	require.Equal(t, uint64(0xDEAD_BEEF), p.AsPointer())
	require.Equal(t, TagPointer, p.Tag())
}

func TestErrorSentinel(t *testing.T) {
	e := Error()
	require.True(t, e.IsError())
	require.False(t, e.IsInt())
	require.False(t, e.IsPointer())
}

func TestFloatRoundTripsInverted(t *testing.T) {
	f := Float(3.5)
	require.True(t, f.IsDouble(), "an inverted double always has a bit set above the tag field")
	require.Equal(t, 3.5, f.AsFloat())

	neg := Float(-0.25)
	require.True(t, neg.IsDouble())
	require.Equal(t, -0.25, neg.AsFloat())
}
