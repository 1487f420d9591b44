package transport

// maxMessageBytes is the maximum inbound text frame size (1 MiB, §4.7/§6).
const maxMessageBytes = 1 << 20

// inboundMessage is the client-facing chat request schema. Stream defaults
// to true when omitted, so existing streaming clients need not set it; a
// client that wants the turn delivered as a single "response" frame instead
// of "partial"/"thinking_fragment" chunks sets it to false.
type inboundMessage struct {
	Type         string       `json:"type"`
	Content      string       `json:"content"`
	Capabilities capabilities `json:"capabilities"`
	Stream       *bool        `json:"stream"`
}

// wantsStream reports whether this turn should use the streaming pipeline,
// defaulting to true when the client didn't specify.
func (m inboundMessage) wantsStream() bool {
	return m.Stream == nil || *m.Stream
}

type capabilities struct {
	SupportsThinking bool `json:"supports_thinking"`
}

// Outbound frame shapes, discriminated by "type" on the wire.

type thinkingStartedMsg struct {
	Type    string `json:"type"`
	Started bool   `json:"started"`
}

type typingMsg struct {
	Type string `json:"type"`
}

type thinkingFragmentMsg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type partialMsg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type responseMsg struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type doneMsg struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func newThinkingStarted() thinkingStartedMsg { return thinkingStartedMsg{Type: "thinking", Started: true} }
func newTyping() typingMsg                   { return typingMsg{Type: "typing"} }
func newThinkingFragment(content string) thinkingFragmentMsg {
	return thinkingFragmentMsg{Type: "thinking_fragment", Content: content}
}
func newPartial(content string) partialMsg   { return partialMsg{Type: "partial", Content: content} }
func newResponse(content string) responseMsg { return responseMsg{Type: "response", Content: content} }
func newError(message string) errorMsg       { return errorMsg{Type: "error", Message: message} }
func newDone(timestamp int64) doneMsg        { return doneMsg{Type: "done", Timestamp: timestamp} }
