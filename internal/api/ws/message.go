package ws

// ClientMessage is a control message from the emulator
type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
	Raw  bool   `json:"raw,omitempty"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

const (
	TypeInput     = "input"
	TypeResize    = "resize"
	TypeSubmit    = "submit"
	TypePing      = "ping"
	TypePong      = "pong"
	TypeSystem    = "system"
	TypeState     = "state"
	TypeStatus    = "status"
	TypeSubmitted = "submitted"
	TypeError     = "error"
)

func messageLabel(t string) string {
	switch t {
	case TypeInput, TypeResize, TypeSubmit, TypePing:
		return t
	default:
		return "unknown"
	}
}
