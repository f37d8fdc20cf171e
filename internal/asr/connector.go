// Package asr manages the persistent outbound connection to the streaming
// speech-recognition backend. One Connector serves one track for one call;
// connection parameters are fixed at open time and never renegotiated.
package asr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/abhishek-singh31/deepgram-transcription-merger/internal/transcript"
)

// EventType tags the closed set of connector event variants.
type EventType int

const (
	// EventOpened signals that the downstream connection is ready to
	// receive audio.
	EventOpened EventType = iota
	// EventFirst carries the metadata of the first message on the
	// connection.
	EventFirst
	// EventTranscript carries one decoded canonical Result.
	EventTranscript
	// EventError reports a connection or decode failure.
	EventError
	// EventClosed reports that the downstream connection has closed.
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventFirst:
		return "first"
	case EventTranscript:
		return "transcript"
	case EventError:
		return "error"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is one tagged connector event. Exactly the field matching Type is
// populated.
type Event struct {
	Type     EventType
	Result   *transcript.Result
	Metadata json.RawMessage
	Err      error
	Reason   string
}

// Config holds the recognizer connection parameters, fixed at open time.
type Config struct {
	URL            string // base listen URL, e.g. wss://api.deepgram.com/v1/listen
	APIKey         string
	Language       string
	Model          string
	SmartFormat    bool
	FillerWords    bool
	NoDelay        bool
	InterimResults bool
	VADTurnoffMs   int
	// Redact is a comma-separated list of redaction categories, each
	// appended as a repeated query parameter. Empty disables redaction.
	Redact string
}

// Connector owns one recognizer websocket for a single track. Send and
// Close must be called from the call session's event loop; decoded events
// are delivered in order on Events.
type Connector struct {
	cfg    Config
	track  transcript.Track
	logger zerolog.Logger

	// mu guards conn and closed: the dial goroutine assigns conn while the
	// session loop may call Send or Close concurrently.
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	events chan Event
	seq    uint64
}

// Dialer opens recognizer connections; swapped out in tests.
type Dialer interface {
	Dial(urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type defaultDialer struct{}

func (defaultDialer) Dial(urlStr string, h http.Header) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial(urlStr, h)
}

// NewConnector returns an unopened connector for one track.
func NewConnector(cfg Config, track transcript.Track, logger zerolog.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		track:  track,
		logger: logger.With().Str("component", "asr").Str("track", string(track)).Logger(),
		events: make(chan Event, 32),
	}
}

// Events returns the connector's in-order event stream. The channel is
// closed after EventClosed or a pre-open EventError is delivered.
func (c *Connector) Events() <-chan Event {
	return c.events
}

// listenURL builds the fixed query string for the streaming session.
func (c *Connector) listenURL() string {
	q := url.Values{}
	q.Set("encoding", "mulaw")
	q.Set("sample_rate", "8000")
	q.Set("language", c.cfg.Language)
	q.Set("model", c.cfg.Model)
	q.Set("smart_format", boolParam(c.cfg.SmartFormat))
	q.Set("filler_words", boolParam(c.cfg.FillerWords))
	q.Set("no_delay", boolParam(c.cfg.NoDelay))
	q.Set("interim_results", boolParam(c.cfg.InterimResults))
	q.Set("vad_turnoff", fmt.Sprintf("%d", c.cfg.VADTurnoffMs))
	if c.cfg.Redact != "" {
		for _, category := range strings.Split(c.cfg.Redact, ",") {
			q.Add("redact", strings.TrimSpace(category))
		}
	}
	return c.cfg.URL + "?" + q.Encode()
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Open dials the recognizer asynchronously. EventOpened is delivered once
// the socket is ready; a dial failure delivers EventError and closes the
// event stream.
func (c *Connector) Open() {
	c.OpenWith(defaultDialer{})
}

// OpenWith dials through the provided dialer.
func (c *Connector) OpenWith(d Dialer) {
	go func() {
		u := c.listenURL()
		header := http.Header{"Authorization": {"Token " + c.cfg.APIKey}}

		c.logger.Debug().Str("url", c.cfg.URL).Msg("opening recognizer connection")
		conn, _, err := d.Dial(u, header)
		if err != nil {
			c.events <- Event{Type: EventError, Err: fmt.Errorf("asr: dial: %w", err)}
			close(c.events)
			return
		}

		c.mu.Lock()
		if c.closed {
			// The session ended while the dial was in flight. Close the
			// fresh socket instead of leaking it and its read loop.
			c.mu.Unlock()
			closeConn(conn)
			c.events <- Event{Type: EventClosed, Reason: "closed during dial"}
			close(c.events)
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.events <- Event{Type: EventOpened}
		c.readLoop(conn)
	}()
}

// readLoop decodes inbound recognizer messages until the socket closes.
// It runs on the dial goroutine; events preserve message order.
func (c *Connector) readLoop(conn *websocket.Conn) {
	first := true
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			reason := "read error"
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "remote close"
			}
			c.events <- Event{Type: EventClosed, Reason: reason, Err: err}
			close(c.events)
			return
		}

		if first {
			first = false
			if isMetadataOnly(raw) {
				c.events <- Event{Type: EventFirst, Metadata: json.RawMessage(raw)}
				continue
			}
			c.events <- Event{Type: EventFirst}
		}

		res, err := decodeResult(raw, c.seq+1)
		if err != nil {
			if err == ErrNoTranscript {
				continue
			}
			c.logger.Warn().Err(err).Msg("dropping undecodable recognizer message")
			continue
		}
		c.seq++
		c.events <- Event{Type: EventTranscript, Result: res}
	}
}

// Send forwards raw audio bytes downstream. A zero-length payload signals
// end-of-audio.
func (c *Connector) Send(payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("asr: send on unopened connection")
	}
	return conn.WriteMessage(websocket.BinaryMessage, payload)
}

// Close ends the recognizer session gracefully. Closing before the dial
// completes marks the connector closed; the dial goroutine then tears the
// fresh socket down itself.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return closeConn(conn)
}

func closeConn(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	return conn.Close()
}
