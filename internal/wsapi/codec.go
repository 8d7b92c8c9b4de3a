package wsapi

import (
	"encoding/json"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Mode selects the wire encoding negotiated at handshake, fixed for
// the lifetime of a connection by which HTTP path it arrived on.
type Mode uint8

const (
	ModeMsgPack Mode = iota
	ModeJSON
)

var mpHandle codec.MsgpackHandle

// encode marshals v per mode.
func encode(mode Mode, v any) ([]byte, error) {
	if mode == ModeJSON {
		return json.Marshal(v)
	}
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &mpHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeEnvelope unmarshals an inbound client message per mode.
func decodeEnvelope(mode Mode, data []byte) (envelope, error) {
	var e envelope
	if mode == ModeJSON {
		err := json.Unmarshal(data, &e)
		return e, err
	}
	dec := codec.NewDecoderBytes(data, &mpHandle)
	err := dec.Decode(&e)
	return e, err
}
