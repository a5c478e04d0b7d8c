package protocol

import "encoding/json"

const Version = "1.0"

// Message types. Within one flush every VERTEX_UPDATE precedes every
// CHUNK_REBUILD so a rebuilt mesh never reads a stale height.
const (
	TypeHello               = "HELLO"
	TypeWelcome             = "WELCOME"
	TypeVertexUpdate        = "VERTEX_UPDATE"
	TypeChunkRebuild        = "CHUNK_REBUILD"
	TypeTierChanged         = "TIER_CHANGED"
	TypeSettlementFounded   = "SETTLEMENT_FOUNDED"
	TypeSettlementDestroyed = "SETTLEMENT_DESTROYED"
	TypeFullState           = "FULL_STATE"
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
