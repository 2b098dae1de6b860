package berrymed

import (
	"github.com/smallnest/ringbuffer"
)

const decoderBufferSize = 512

// Decoder reassembles measurement frames from the notification byte stream.
// BLE notifications arrive in arbitrary chunk sizes, so frames may be split
// across chunks or preceded by garbage after a dropped packet. The decoder
// resynchronizes on the sync bit: byte 0 of a frame is the only byte with the
// MSB set.
//
// Feed and Next may be called from different goroutines; the underlying ring
// buffer is thread-safe and each of the two methods has a single caller.
type Decoder struct {
	rb  *ringbuffer.RingBuffer
	buf Frame
	pos int
}

func NewDecoder() *Decoder {
	return &Decoder{rb: ringbuffer.New(decoderBufferSize)}
}

// Feed appends raw notification bytes. The consumer only cares about the
// most recent frames, so when an incoming chunk would not fit the unread
// backlog is discarded wholesale in its favor; the sync bit recovers framing
// from the fresh bytes.
func (d *Decoder) Feed(data []byte) {
	if len(data) > decoderBufferSize {
		data = data[len(data)-decoderBufferSize:]
	}
	if len(data) > d.rb.Free() {
		d.rb.Reset()
	}
	_, _ = d.rb.Write(data)
}

// Next returns the next complete frame decoded from the buffered stream, or
// ok=false when no complete frame is available yet. It never blocks.
func (d *Decoder) Next() (Sample, bool) {
	for {
		b, err := d.rb.ReadByte()
		if err != nil {
			return Sample{}, false
		}

		sync := b&(1<<7) != 0
		switch {
		case d.pos == 0:
			if !sync {
				continue // mid-frame garbage, wait for a sync byte
			}
			d.buf[0] = b
			d.pos = 1
		case sync:
			// Unexpected frame start: the previous frame was truncated.
			// Treat this byte as the new first byte.
			d.buf[0] = b
			d.pos = 1
		default:
			d.buf[d.pos] = b
			d.pos++
			if d.pos == FrameSize {
				d.pos = 0
				return d.buf.Decode(), true
			}
		}
	}
}
