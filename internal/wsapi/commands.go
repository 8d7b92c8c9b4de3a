package wsapi

import "github.com/dmattli/go-exopticon/internal/model"

// Subject names a frame source and the resolution a client wants to
// receive it at.
type Subject struct {
	Source     model.FrameSource `json:"source" codec:"source"`
	Resolution model.Resolution  `json:"resolution" codec:"resolution"`
}

// commandType tags which variant an inbound envelope carries.
type commandType string

const (
	cmdSubscribe     commandType = "subscribe"
	cmdUnsubscribe   commandType = "unsubscribe"
	cmdAck           commandType = "ack"
	cmdStartPlayback commandType = "start_playback"
	cmdStopPlayback  commandType = "stop_playback"
)

// envelope is the wire shape of every client → server message: a
// discriminator plus the fields relevant to that command, unused
// fields left zero. Both the JSON and MsgPack codecs decode into this
// same struct.
type envelope struct {
	Type         commandType `json:"type" codec:"type"`
	Subject      Subject     `json:"subject,omitempty" codec:"subject,omitempty"`
	ID           string      `json:"id,omitempty" codec:"id,omitempty"`
	VideoUnitID  int32       `json:"video_unit_id,omitempty" codec:"video_unit_id,omitempty"`
	OffsetMillis int64       `json:"offset,omitempty" codec:"offset,omitempty"`
}

// Command is the decoded, typed form of a client message that Session
// dispatches on.
type Command interface{ isCommand() }

type SubscribeCmd struct{ Subject Subject }
type UnsubscribeCmd struct{ Subject Subject }
type AckCmd struct{}
type StartPlaybackCmd struct {
	ID          string
	VideoUnitID int32
	OffsetUS    int64
}
type StopPlaybackCmd struct{ ID string }

func (SubscribeCmd) isCommand()     {}
func (UnsubscribeCmd) isCommand()   {}
func (AckCmd) isCommand()           {}
func (StartPlaybackCmd) isCommand() {}
func (StopPlaybackCmd) isCommand()  {}

func decodeCommand(e envelope) (Command, error) {
	switch e.Type {
	case cmdSubscribe:
		return SubscribeCmd{Subject: e.Subject}, nil
	case cmdUnsubscribe:
		return UnsubscribeCmd{Subject: e.Subject}, nil
	case cmdAck:
		return AckCmd{}, nil
	case cmdStartPlayback:
		return StartPlaybackCmd{ID: e.ID, VideoUnitID: e.VideoUnitID, OffsetUS: e.OffsetMillis * 1000}, nil
	case cmdStopPlayback:
		return StopPlaybackCmd{ID: e.ID}, nil
	default:
		return nil, errUnknownCommand(e.Type)
	}
}

type errUnknownCommand commandType

func (e errUnknownCommand) Error() string { return "wsapi: unknown command type " + string(e) }
