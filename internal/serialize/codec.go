// Package serialize encodes segments as zstd-compressed Arrow IPC streams.
// The segment library stores segments in this form so a stored segment can
// never be mutated through a shared buffer.
package serialize

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"

	"github.com/hugr-lab/segstore/segment"
)

// ErrEmptyBlob indicates a stored segment blob with no data.
var ErrEmptyBlob = errors.New("serialize: empty segment blob")

// Codec converts segments to and from compressed IPC blobs.
// Create once and reuse; it is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec compressing at zstd's default level.
// Caller must call Close when done.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode writes the segment's record as a single-batch IPC stream and
// compresses it.
func (c *Codec) Encode(seg *segment.Segment) ([]byte, error) {
	rec := seg.Record()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write segment %s: %w", seg.ID(), err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close IPC writer: %w", err)
	}

	// EncodeAll is goroutine-safe
	return c.encoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

// Decode rebuilds a segment from a blob produced by Encode. Buffers are
// allocated from mem; the caller owns the returned segment.
func (c *Codec) Decode(mem memory.Allocator, id string, seq int, blob []byte) (*segment.Segment, error) {
	if len(blob) == 0 {
		return nil, ErrEmptyBlob
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	data, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress segment %s: %w", id, err)
	}

	r, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("failed to open segment %s: %w", id, err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("failed to read segment %s: %w", id, err)
		}
		return nil, fmt.Errorf("segment %s: %w", id, ErrEmptyBlob)
	}
	// New retains the batch, which outlives the reader.
	return segment.New(id, seq, r.RecordBatch())
}

// Close releases the zstd encoder and decoder.
func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
