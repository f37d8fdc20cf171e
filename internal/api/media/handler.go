// Package media terminates inbound telephony media-stream websocket
// connections and feeds their events into call sessions.
package media

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/observability/metrics"
	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

// CloseCodeRejected is sent when a connection misbehaves before the start
// event established a session.
const CloseCodeRejected = 4001

// stallThreshold is how long without a media frame counts as a stalled stream.
const stallThreshold = 5 * time.Second

// Session is the per-call consumer of media events.
type Session interface {
	HandleFrame(track transcript.Track, sourceTimestampMs int64, payload []byte)
	End()
	Done() <-chan struct{}
}

// SessionFactory creates the session for one started stream.
type SessionFactory func(id string, meta transcript.Metadata) Session

// streamMessage is the envelope of every inbound media-stream event.
type streamMessage struct {
	Event string        `json:"event"`
	Start *startPayload `json:"start"`
	Media *mediaPayload `json:"media"`
}

type startPayload struct {
	CallSid          string            `json:"callSid"`
	StreamSid        string            `json:"streamSid"`
	AccountSid       string            `json:"accountSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaPayload struct {
	Track string `json:"track"`
	// Source timestamps arrive as milliseconds, sometimes quoted.
	Timestamp json.Number `json:"timestamp"`
	Payload   string      `json:"payload"`
}

// Handler upgrades media-stream connections and drives one session per
// connection.
type Handler struct {
	newSession SessionFactory
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
	stallWarn  time.Duration
}

func NewHandler(newSession SessionFactory, logger zerolog.Logger) *Handler {
	return &Handler{
		newSession: newSession,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:    logger.With().Str("component", "media_handler").Logger(),
		stallWarn: stallThreshold,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.serve(conn)
}

// serve reads the connection until it closes, then ends the session and
// waits for the call record to be emitted.
func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()

	var (
		session    Session
		logger     = h.logger
		lastPacket atomic.Int64
		stopWatch  chan struct{}
	)
	defer func() {
		if stopWatch != nil {
			close(stopWatch)
		}
		if session != nil {
			session.End()
			<-session.Done()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("media stream closed")
			return
		}

		if strings.TrimSpace(string(raw)) == "" {
			if session == nil {
				h.reject(conn, "Empty auth message")
				return
			}
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			if session == nil {
				h.reject(conn, "Invalid auth message")
				return
			}
			metrics.Default.RecordParseError("media")
			logger.Warn().Err(err).Msg("dropping malformed media message")
			continue
		}

		switch msg.Event {
		case "start":
			if session != nil || msg.Start == nil {
				continue
			}
			id := uuid.NewString()
			meta := transcript.Metadata{
				CallSid:          msg.Start.CallSid,
				StreamSid:        msg.Start.StreamSid,
				AccountSid:       msg.Start.AccountSid,
				CustomParameters: transcript.CustomParameters(msg.Start.CustomParameters),
			}
			logger = h.logger.With().
				Str("call_id", id).
				Str("stream_sid", meta.StreamSid).
				Logger()
			logger.Info().
				Str("call_flow_type", meta.CustomParameters.CallFlowType()).
				Msg("media stream started")
			session = h.newSession(id, meta)
			stopWatch = make(chan struct{})
			go h.watchStall(&lastPacket, stopWatch, logger)

		case "media":
			if session == nil || msg.Media == nil {
				metrics.Default.RecordParseError("media")
				continue
			}
			track := transcript.Track(msg.Media.Track)
			ts, err := msg.Media.Timestamp.Int64()
			if err != nil {
				metrics.Default.RecordParseError("media")
				logger.Warn().Str("timestamp", msg.Media.Timestamp.String()).Msg("dropping frame with bad timestamp")
				continue
			}
			payload, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				metrics.Default.RecordParseError("media")
				logger.Warn().Err(err).Msg("dropping frame with bad payload encoding")
				continue
			}
			lastPacket.Store(time.Now().UnixNano())
			session.HandleFrame(track, ts, payload)

		case "stop":
			// Advisory only. Teardown is driven by connection close.
			logger.Info().Msg("media stream stop received")

		default:
			logger.Debug().Str("event", msg.Event).Msg("ignoring unknown media event")
		}
	}
}

// reject refuses a connection that misbehaved before session start: the
// reason is echoed back as JSON, then the socket is closed with an
// application close code.
func (h *Handler) reject(conn *websocket.Conn, reason string) {
	h.logger.Warn().Str("reason", reason).Msg("rejecting media stream connection")
	payload, _ := json.Marshal(map[string]string{"message": reason})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
	msg := websocket.FormatCloseMessage(CloseCodeRejected, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// watchStall logs once when no media frame has arrived for longer than the
// stall threshold, then exits.
func (h *Handler) watchStall(lastPacket *atomic.Int64, stop <-chan struct{}, logger zerolog.Logger) {
	ticker := time.NewTicker(h.stallWarn)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			last := lastPacket.Load()
			if last == 0 {
				continue
			}
			if time.Since(time.Unix(0, last)) > h.stallWarn {
				logger.Warn().Time("last_packet", time.Unix(0, last)).Msg("media stream stalled")
				return
			}
		}
	}
}
