package analysis

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

func TestWriteFrameLengthPrefixesPayload(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	jpeg := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, jpeg); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got := binary.BigEndian.Uint32(buf.Bytes()[:4]); got != uint32(len(jpeg)) {
		t.Fatalf("expected length prefix %d, got %d", len(jpeg), got)
	}
	if !bytes.Equal(buf.Bytes()[4:], jpeg) {
		t.Fatalf("expected payload to follow the length prefix unchanged")
	}
}

func encodeWireObservation(t *testing.T, w wireObservation) []byte {
	t.Helper()
	var payload []byte
	enc := codec.NewEncoderBytes(&payload, &mpHandle)
	if err := enc.Encode(w); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadObservationDecodesFields(t *testing.T) {
	t.Parallel()
	data := encodeWireObservation(t, wireObservation{
		FrameOffsetUS: 42, Tag: "person", Details: "walking", Score: 87,
		ULX: 1, ULY: 2, LRX: 3, LRY: 4,
	})

	obs, err := ReadObservation(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadObservation: %v", err)
	}
	if obs.FrameOffsetUS != 42 || obs.Tag != "person" || obs.Details != "walking" || obs.Score != 87 {
		t.Fatalf("unexpected decode: %+v", obs)
	}
	if obs.BBox.ULX != 1 || obs.BBox.ULY != 2 || obs.BBox.LRX != 3 || obs.BBox.LRY != 4 {
		t.Fatalf("unexpected bbox decode: %+v", obs.BBox)
	}
}
