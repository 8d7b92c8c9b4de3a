package analysis

import (
	"encoding/binary"
	"io"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

var mpHandle codec.MsgpackHandle

// wireObservation is the MsgPack payload an analysis engine writes to
// stdout for each detection, length-prefixed the same way the capture
// subprocess's stdout protocol is (internal/capture/protocol.go), so
// both subprocess protocols share one framing idiom even though their
// payload encodings differ (tagged binary records for capture, MsgPack
// here since an analysis engine's observation shape is richer and
// engine-author-facing).
type wireObservation struct {
	FrameOffsetUS int64  `codec:"frame_offset_us"`
	Tag           string `codec:"tag"`
	Details       string `codec:"details"`
	Score         int32  `codec:"score"`
	ULX           int32  `codec:"ul_x"`
	ULY           int32  `codec:"ul_y"`
	LRX           int32  `codec:"lr_x"`
	LRY           int32  `codec:"lr_y"`
}

// WriteFrame sends one length-prefixed JPEG frame to an engine's
// stdin.
func WriteFrame(w io.Writer, jpeg []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(jpeg)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(jpeg)
	return err
}

// ReadObservation reads one length-prefixed MsgPack observation record
// from an engine's stdout.
func ReadObservation(r io.Reader) (model.Observation, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return model.Observation{}, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return model.Observation{}, err
	}

	var w wireObservation
	dec := codec.NewDecoderBytes(payload, &mpHandle)
	if err := dec.Decode(&w); err != nil {
		return model.Observation{}, err
	}

	return model.Observation{
		FrameOffsetUS: w.FrameOffsetUS,
		Tag:           w.Tag,
		Details:       w.Details,
		Score:         w.Score,
		BBox:          model.Rect{ULX: w.ULX, ULY: w.ULY, LRX: w.LRX, LRY: w.LRY},
	}, nil
}
