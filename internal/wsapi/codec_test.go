package wsapi

import "testing"

func TestJSONRoundTripsEnvelope(t *testing.T) {
	t.Parallel()
	in := envelope{Type: cmdAck}
	data, err := encode(ModeJSON, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeEnvelope(ModeJSON, data)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if out.Type != cmdAck {
		t.Fatalf("expected type %q, got %q", cmdAck, out.Type)
	}
}

func TestMsgPackRoundTripsEnvelope(t *testing.T) {
	t.Parallel()
	in := envelope{Type: cmdStartPlayback, ID: "abc", VideoUnitID: 7, OffsetMillis: 1500}
	data, err := encode(ModeMsgPack, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeEnvelope(ModeMsgPack, data)
	if err != nil {
		t.Fatalf("decodeEnvelope: %v", err)
	}
	if out.Type != cmdStartPlayback || out.ID != "abc" || out.VideoUnitID != 7 || out.OffsetMillis != 1500 {
		t.Fatalf("unexpected round trip result: %+v", out)
	}
}

func TestDecodeCommandRejectsUnknownType(t *testing.T) {
	t.Parallel()
	_, err := decodeCommand(envelope{Type: "bogus"})
	if err == nil {
		t.Fatalf("expected error for unknown command type")
	}
}

func TestDecodeCommandConvertsOffsetToMicroseconds(t *testing.T) {
	t.Parallel()
	cmd, err := decodeCommand(envelope{Type: cmdStartPlayback, OffsetMillis: 2})
	if err != nil {
		t.Fatalf("decodeCommand: %v", err)
	}
	sp, ok := cmd.(StartPlaybackCmd)
	if !ok {
		t.Fatalf("expected StartPlaybackCmd, got %T", cmd)
	}
	if sp.OffsetUS != 2000 {
		t.Fatalf("expected 2000us, got %d", sp.OffsetUS)
	}
}
