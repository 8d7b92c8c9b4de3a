package wsapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmattli/go-exopticon/internal/framebus"
	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/gorilla/websocket"
)

// PlaybackController starts and stops a playback decoder on behalf of
// a StartPlayback/StopPlayback command. Implemented by the playback
// package's Supervisor; kept as an interface here so wsapi doesn't
// import playback.
type PlaybackController interface {
	StartPlayback(ctx context.Context, id string, videoUnitID int32, offsetUS int64) error
	StopPlayback(id string)
}

// Handler upgrades HTTP requests to websocket connections and runs
// each connection's read/write pumps: upgrade, spawn a write pump
// draining a per-connection send channel, then block the request
// goroutine in a read pump until disconnect.
type Handler struct {
	bus      *framebus.Bus
	playback PlaybackController
	log      *slog.Logger
	mode     Mode
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler that upgrades every request it serves
// using mode for wire encoding (JSON for "/v1/ws_json", MsgPack for
// "/v1/ws" — the caller mounts one Handler per mode at the matching
// path).
func NewHandler(mode Mode, bus *framebus.Bus, playback PlaybackController, log *slog.Logger) *Handler {
	return &Handler{
		bus:      bus,
		playback: playback,
		log:      log,
		mode:     mode,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := NewSession(h.mode, h.bus, h.log)
	send := make(chan framebus.Frame, 4)
	deliver := &Deliver{session: sess, send: send}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writePump(ctx, conn, sess, send)
	h.readPump(ctx, conn, sess, deliver)

	for _, subj := range sess.Subjects() {
		h.bus.Unsubscribe(subjectToKey(subj), deliver)
	}
	close(send)
	conn.Close()
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sess *Session, send chan framebus.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-send:
			if !ok {
				return
			}
			msg := frameMessage{
				Source:     f.Source,
				Resolution: f.Resolution,
				OffsetUS:   f.OffsetUS,
				Data:       f.Buf.Bytes(),
			}
			data, err := encode(sess.mode, msg)
			f.Buf.Release()
			if err != nil {
				h.log.Error("failed to encode frame", "error", err)
				continue
			}
			wireType := websocket.BinaryMessage
			if sess.mode == ModeJSON {
				wireType = websocket.TextMessage
			}
			if err := conn.WriteMessage(wireType, data); err != nil {
				h.log.Debug("websocket write failed, closing session", "error", err)
				return
			}
			sess.MarkDrained()
		}
	}
}

// frameMessage is the wire shape of a server → client frame delivery.
type frameMessage struct {
	Source     model.FrameSource `json:"source" codec:"source"`
	Resolution model.Resolution  `json:"resolution" codec:"resolution"`
	OffsetUS   int64             `json:"offset_us" codec:"offset_us"`
	Data       []byte            `json:"data" codec:"data"`
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, sess *Session, deliver *Deliver) {
	for {
		wireType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if wireType != websocket.TextMessage && wireType != websocket.BinaryMessage {
			continue
		}
		e, err := decodeEnvelope(sess.mode, data)
		if err != nil {
			h.log.Debug("failed to decode client command", "error", err)
			continue
		}
		cmd, err := decodeCommand(e)
		if err != nil {
			h.log.Debug("unknown client command", "error", err)
			continue
		}
		h.dispatch(ctx, cmd, sess, deliver)
	}
}

func (h *Handler) dispatch(ctx context.Context, cmd Command, sess *Session, deliver *Deliver) {
	switch c := cmd.(type) {
	case SubscribeCmd:
		if sess.Subscribe(c.Subject) {
			h.bus.Subscribe(subjectToKey(c.Subject), deliver)
		}
	case UnsubscribeCmd:
		if sess.Unsubscribe(c.Subject) {
			h.bus.Unsubscribe(subjectToKey(c.Subject), deliver)
		}
	case AckCmd:
		sess.Ack()
	case StartPlaybackCmd:
		if h.playback != nil {
			if err := h.playback.StartPlayback(ctx, c.ID, c.VideoUnitID, c.OffsetUS); err != nil {
				h.log.Warn("start playback failed", "id", c.ID, "error", err)
			}
		}
	case StopPlaybackCmd:
		if h.playback != nil {
			h.playback.StopPlayback(c.ID)
		}
	}
}
