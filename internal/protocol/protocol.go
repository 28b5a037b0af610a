package protocol

import "encoding/json"

// Inbound websocket message types.
const (
	TypeTick              = "tick"
	TypeToast             = "toast"
	TypeLLMConfigRequired = "llm_config_required"
	TypeGameReinitialized = "game_reinitialized"
)

// Toast levels. Anything else is shown as info.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelSuccess = "success"
	LevelInfo    = "info"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Message is one parsed inbound frame. Raw keeps the full frame so the router
// can decode the concrete shape once it knows the type.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// ParseMessage decodes a frame into a Message. Frames that are not JSON
// objects, or carry no type, are rejected.
func ParseMessage(b []byte) (Message, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return Message{}, err
	}
	if base.Type == "" {
		return Message{}, ErrMissingType
	}
	return Message{Type: base.Type, Raw: append(json.RawMessage(nil), b...)}, nil
}

// Decode unmarshals the raw frame into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}
