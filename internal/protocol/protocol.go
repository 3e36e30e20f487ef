package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// Client -> server.
	TypeHello       = "HELLO"
	TypeClick       = "CLICK"
	TypeDoubleClick = "DOUBLE_CLICK"
	TypeFlag        = "FLAG"
	TypeUnflag      = "UNFLAG"
	TypeQuery       = "QUERY"

	// Server -> client.
	TypeWelcome      = "WELCOME"
	TypeChunk        = "CHUNK"
	TypeRect         = "RECT"
	TypeFlagged      = "FLAGGED"
	TypeUnflagged    = "UNFLAGGED"
	TypePlayer       = "PLAYER"
	TypeDisconnected = "DISCONNECTED"
	TypeError        = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
