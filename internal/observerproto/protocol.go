package observerproto

// Version is the observer protocol version (separate from the player WS protocol).
const Version = "0.2"

const (
	TypeSubscribe  = "SUBSCRIBE"
	TypeTick       = "TICK"
	TypeChunkEvict = "CHUNK_EVICT"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to move the viewport.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	W               int    `json:"w"`
	H               int    `json:"h"`
	Encoding        string `json:"encoding,omitempty"`
	MaxChunks       int    `json:"max_chunks,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	WorldParams     WorldParams   `json:"world_params"`
	Chunks          int           `json:"chunks"`
	Players         []PlayerState `json:"players"`
}

type WorldParams struct {
	TickRateHz    int `json:"tick_rate_hz"`
	ChunkSize     int `json:"chunk_size"`
	MinesPerChunk int `json:"mines_per_chunk"`
	BoundaryR     int `json:"boundary_r"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Players         []PlayerState `json:"players"`
	Joins           []JoinInfo    `json:"joins,omitempty"`
	Leaves          []string      `json:"leaves,omitempty"`
}

type JoinInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type PlayerState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Alive     bool   `json:"alive"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Points    int64  `json:"points"`
	Deaths    int    `json:"deaths"`
}

// Server -> Client. The chunk left the viewport; drop it from the client
// cache.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
}
