package transport

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"agentgw/internal/agent"
	"agentgw/internal/logging"
	"agentgw/internal/thinkdemux"
)

// session owns one accepted WebSocket connection. Chat turns are processed
// strictly serially: the read loop blocks for the next inbound message
// until the in-flight turn has emitted done or error.
type session struct {
	conn           *websocket.Conn
	conversationID string
	agent          *agent.Agent

	// visibleRaw accumulates the turn's raw (pre-cleanup) partial text so
	// that CleanupText runs as a whole-text pass rather than per fragment;
	// cleanSent is the cleaned prefix already delivered to the client, used
	// to compute the incremental delta for the next partial frame.
	visibleRaw strings.Builder
	cleanSent  string
}

func newSession(conn *websocket.Conn, ag *agent.Agent) *session {
	return &session{conn: conn, conversationID: uuid.NewString(), agent: ag}
}

// run reads chat messages off the connection until it closes or a
// transport-level error closes it first.
func (s *session) run() {
	log := logging.Component("transport").With().Str("conversation_id", s.conversationID).Logger()
	for {
		kind, reader, err := s.conn.NextReader()
		if err != nil {
			log.Debug().Err(err).Msg("connection_closed")
			return
		}
		raw, err := io.ReadAll(io.LimitReader(reader, maxMessageBytes+1))
		if err != nil {
			log.Debug().Err(err).Msg("connection_closed")
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if len(raw) > maxMessageBytes {
			_, _ = io.Copy(io.Discard, reader)
			_ = s.conn.WriteJSON(newError("message exceeds maximum size"))
			s.conn.Close()
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = s.conn.WriteJSON(newError("malformed message"))
			continue
		}
		if msg.Type != "chat" {
			continue
		}

		if !s.processTurn(log, msg) {
			return
		}
	}
}

// processTurn runs one chat turn to completion, returning false when the
// connection should be closed (a write failure mid-turn).
func (s *session) processTurn(log zerolog.Logger, msg inboundMessage) bool {
	if !msg.wantsStream() {
		return s.processTurnNonStreaming(log, msg)
	}

	ctx := context.Background()
	s.visibleRaw.Reset()
	s.cleanSent = ""

	if msg.Capabilities.SupportsThinking {
		if err := s.conn.WriteJSON(newThinkingStarted()); err != nil {
			return false
		}
	}

	fragments, err := s.agent.ProcessMessageStream(ctx, s.conversationID, msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("turn_dispatch_failed")
		_ = s.conn.WriteJSON(newError(err.Error()))
		return true
	}

	if err := s.conn.WriteJSON(newTyping()); err != nil {
		return false
	}

	demux := thinkdemux.NewDemux()
	for frag := range fragments {
		if frag.Err != nil {
			log.Warn().Err(frag.Err).Msg("stream_failed")
			_ = s.conn.WriteJSON(newError(frag.Err.Error()))
			return true
		}
		if frag.Done {
			break
		}
		if frag.Replay {
			// A cache hit is already the complete, cleaned user-visible
			// text: deliver it as exactly one partial frame rather than
			// running it back through the demultiplexer.
			if err := s.conn.WriteJSON(newPartial(frag.Content)); err != nil {
				return false
			}
			continue
		}
		if !s.emitFrames(demux.Feed(frag.Content), msg.Capabilities.SupportsThinking) {
			return false
		}
	}
	if !s.emitFrames(demux.Flush(), msg.Capabilities.SupportsThinking) {
		return false
	}

	if err := s.conn.WriteJSON(newDone(time.Now().Unix())); err != nil {
		return false
	}
	return true
}

// processTurnNonStreaming runs the non-streaming pipeline (§4.6) and
// delivers the whole answer as a single "response" frame, for clients that
// did not opt into streaming.
func (s *session) processTurnNonStreaming(log zerolog.Logger, msg inboundMessage) bool {
	reply, err := s.agent.ProcessMessage(context.Background(), s.conversationID, msg.Content)
	if err != nil {
		log.Warn().Err(err).Msg("turn_dispatch_failed")
		_ = s.conn.WriteJSON(newError(err.Error()))
		return true
	}
	if err := s.conn.WriteJSON(newResponse(reply)); err != nil {
		return false
	}
	if err := s.conn.WriteJSON(newDone(time.Now().Unix())); err != nil {
		return false
	}
	return true
}

// emitFrames translates demux frames into protocol frames, dropping
// thinking_fragment frames for clients that did not opt in. Partial frames
// are cleaned as a whole-text pass over the turn's accumulated visible
// output (CleanupText is not safe to apply independently per fragment,
// since blank-line collapsing and meta-prefix elision need to see text that
// may span a fragment boundary); only the new suffix beyond what has
// already been sent is written out.
func (s *session) emitFrames(frames []thinkdemux.Frame, supportsThinking bool) bool {
	for _, f := range frames {
		switch f.Kind {
		case thinkdemux.FrameThinking:
			if !supportsThinking {
				continue
			}
			if err := s.conn.WriteJSON(newThinkingFragment(f.Content)); err != nil {
				return false
			}
		case thinkdemux.FramePartial:
			s.visibleRaw.WriteString(f.Content)
			cleaned := thinkdemux.CleanupText(s.visibleRaw.String())
			delta := cleaned
			if strings.HasPrefix(cleaned, s.cleanSent) {
				delta = cleaned[len(s.cleanSent):]
			}
			s.cleanSent = cleaned
			if delta == "" {
				continue
			}
			if err := s.conn.WriteJSON(newPartial(delta)); err != nil {
				return false
			}
		}
	}
	return true
}
