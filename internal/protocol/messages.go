package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Name            string            `json:"name"`
	ResumeToken     string            `json:"resume_token,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	// Encodings the client can decode, in order of preference.
	Encodings []string `json:"encodings,omitempty"`
}

// CLICK, DOUBLE_CLICK, FLAG and UNFLAG (client -> server)
type ActionMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// QUERY (client -> server). Asks for snapshots of materialized chunks
// overlapping [x, x+w) × [y, y+h).
type QueryMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        string      `json:"player_id"`
	ResumeToken     string      `json:"resume_token"`
	Encoding        string      `json:"encoding"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int `json:"tick_rate_hz"`
	ChunkSize     int `json:"chunk_size"`
	MinesPerChunk int `json:"mines_per_chunk"`
	BoundaryR     int `json:"boundary_r"`
	MaxQueryChunk int `json:"max_query_chunks"`
}

// CHUNK (server -> client). Data holds 256 public tiles, row-major.
type ChunkMsg struct {
	Type     string `json:"type"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Rev      uint64 `json:"rev"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// RECT (server -> client). A region diff: W*H public tiles plus a changed
// bitmap (bit i = cell i, LSB first).
type RectMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	W        int    `json:"w"`
	H        int    `json:"h"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
	Changed  string `json:"changed"`
}

// FLAGGED and UNFLAGGED (server -> client)
type FlagMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// PLAYER (server -> client)
type PlayerMsg struct {
	Type        string `json:"type"`
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Histogram   [9]int `json:"histogram"`
	Points      int64  `json:"points"`
	Deaths      int    `json:"deaths"`
	DeadUntilMS int64  `json:"dead_until_ms,omitempty"`
	Connected   bool   `json:"connected"`
}

// DISCONNECTED (server -> client)
type DisconnectedMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Message: msg}
}
