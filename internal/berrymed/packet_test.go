package berrymed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxitrack/oxitrack/internal/berrymed"
)

// frameBytes builds a raw BM1000 frame. Byte 0 carries the sync bit; the
// pulse rate MSB lives in bit 6 of byte 2.
func frameBytes(pulse uint16, spo2, pleth uint8, fingerPresent, signal bool) []byte {
	b0 := byte(1<<7 | 5) // sync bit + signal strength 5
	if !signal {
		b0 |= 1 << 4
	}
	b2 := byte(3) // bargraph
	if !fingerPresent {
		b2 |= 1 << 4
	}
	if pulse > 127 {
		b2 |= 1 << 6
	}
	return []byte{b0, pleth, b2, byte(pulse & 127), spo2}
}

func decodeOne(t *testing.T, raw []byte) berrymed.Sample {
	t.Helper()
	require.Len(t, raw, berrymed.FrameSize)
	var f berrymed.Frame
	copy(f[:], raw)
	return f.Decode()
}

func TestFrameDecode(t *testing.T) {
	t.Run("normal reading", func(t *testing.T) {
		s := decodeOne(t, frameBytes(72, 98, 40, true, true))

		assert.True(t, s.Valid)
		assert.True(t, s.FingerPresent)
		assert.Equal(t, uint16(72), s.PulseRate)
		assert.Equal(t, uint8(98), s.SpO2)
		assert.Equal(t, uint8(40), s.Pleth)
	})

	t.Run("pulse rate MSB assembled from byte 2", func(t *testing.T) {
		s := decodeOne(t, frameBytes(160, 95, 30, true, true))
		assert.Equal(t, uint16(160), s.PulseRate)
	})

	t.Run("no-reading sentinel", func(t *testing.T) {
		s := decodeOne(t, frameBytes(255, 0, 0, true, true))
		assert.Equal(t, uint16(berrymed.NoReadingPulseRate), s.PulseRate)
	})

	t.Run("no-signal flag clears validity", func(t *testing.T) {
		s := decodeOne(t, frameBytes(72, 98, 40, true, false))
		assert.False(t, s.Valid)
	})

	t.Run("no-finger flag", func(t *testing.T) {
		s := decodeOne(t, frameBytes(72, 98, 40, false, true))
		assert.False(t, s.FingerPresent)
	})
}

func TestSampleUsable(t *testing.T) {
	tests := []struct {
		name   string
		sample berrymed.Sample
		want   bool
	}{
		{
			name:   "valid reading with finger present",
			sample: berrymed.Sample{Valid: true, FingerPresent: true, PulseRate: 72, SpO2: 98},
			want:   true,
		},
		{
			name:   "invalid flag rejects regardless of other fields",
			sample: berrymed.Sample{Valid: false, FingerPresent: true, PulseRate: 72, SpO2: 98},
			want:   false,
		},
		{
			name:   "missing finger rejects regardless of other fields",
			sample: berrymed.Sample{Valid: true, FingerPresent: false, PulseRate: 72, SpO2: 98},
			want:   false,
		},
		{
			name:   "no-reading pulse sentinel rejects",
			sample: berrymed.Sample{Valid: true, FingerPresent: true, PulseRate: 255, SpO2: 98},
			want:   false,
		},
		{
			name:   "pulse just below sentinel is accepted",
			sample: berrymed.Sample{Valid: true, FingerPresent: true, PulseRate: 254, SpO2: 98},
			want:   true,
		},
		{
			name:   "all conditions failing",
			sample: berrymed.Sample{Valid: false, FingerPresent: false, PulseRate: 255},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sample.Usable())
		})
	}
}

func TestDecoder(t *testing.T) {
	t.Run("decodes a whole frame", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		dec.Feed(frameBytes(72, 98, 40, true, true))

		s, ok := dec.Next()
		require.True(t, ok)
		assert.Equal(t, uint16(72), s.PulseRate)

		_, ok = dec.Next()
		assert.False(t, ok, "no second frame buffered")
	})

	t.Run("reassembles a frame split across chunks", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		raw := frameBytes(80, 97, 33, true, true)

		dec.Feed(raw[:2])
		_, ok := dec.Next()
		require.False(t, ok, "incomplete frame must not decode")

		dec.Feed(raw[2:])
		s, ok := dec.Next()
		require.True(t, ok)
		assert.Equal(t, uint16(80), s.PulseRate)
	})

	t.Run("skips mid-frame garbage before first sync byte", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		dec.Feed([]byte{0x01, 0x22, 0x33}) // no sync bit anywhere
		dec.Feed(frameBytes(64, 99, 20, true, true))

		s, ok := dec.Next()
		require.True(t, ok)
		assert.Equal(t, uint16(64), s.PulseRate)
	})

	t.Run("resynchronizes after a truncated frame", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		truncated := frameBytes(90, 96, 25, true, true)[:3]
		dec.Feed(truncated)
		dec.Feed(frameBytes(66, 98, 28, true, true))

		s, ok := dec.Next()
		require.True(t, ok)
		assert.Equal(t, uint16(66), s.PulseRate, "frame after truncation decodes, truncated one is dropped")
	})

	t.Run("overflow discards the stale backlog, not the fresh bytes", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		// Fill the buffer to within one frame of capacity without consuming.
		for i := 0; i < 102; i++ {
			dec.Feed(frameBytes(70, 98, 10, true, true))
		}
		// This frame no longer fits; it must displace the backlog rather
		// than being dropped.
		dec.Feed(frameBytes(123, 91, 55, true, true))

		var last berrymed.Sample
		seen := false
		for {
			s, ok := dec.Next()
			if !ok {
				break
			}
			last, seen = s, true
		}
		require.True(t, seen)
		assert.Equal(t, uint16(123), last.PulseRate)
	})

	t.Run("returns multiple frames in arrival order", func(t *testing.T) {
		dec := berrymed.NewDecoder()
		dec.Feed(frameBytes(60, 98, 10, true, true))
		dec.Feed(frameBytes(61, 97, 11, true, true))
		dec.Feed(frameBytes(62, 96, 12, true, true))

		for i, want := range []uint16{60, 61, 62} {
			s, ok := dec.Next()
			require.True(t, ok, "frame %d", i)
			assert.Equal(t, want, s.PulseRate)
		}
	})
}
