package protocol

// HELLO (replica -> host)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReplicaName     string `json:"replica_name"`
	WantFullState   bool   `json:"want_full_state,omitempty"`
}

// WELCOME (host -> replica)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReplicaID       string      `json:"replica_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	WorldID    string `json:"world_id"`
	Seed       int64  `json:"seed"`
	ChunkWidth int    `json:"chunk_width"`
	ChunkCount int    `json:"chunk_count"`
	StepHeight int32  `json:"step_height"`
	WaterLevel int32  `json:"water_level"`

	// Worldgen tuning so a replica can regenerate the field from the seed.
	PlateauRegion  int `json:"plateau_region,omitempty"`
	PlateauSteps   int `json:"plateau_steps,omitempty"`
	ForestPermille int `json:"forest_permille,omitempty"`
	SwampPermille  int `json:"swamp_permille,omitempty"`
	RockPermille   int `json:"rock_permille,omitempty"`
}

// VERTEX_UPDATE (host -> replicas): one mutated vertex.
type VertexUpdateMsg struct {
	Type    string `json:"type"`
	GlobalX int32  `json:"global_x"`
	GlobalZ int32  `json:"global_z"`
	Height  int32  `json:"height"`
}

// CHUNK_REBUILD (host -> replicas): regenerate one chunk's mesh.
type ChunkRebuildMsg struct {
	Type   string `json:"type"`
	ChunkX int32  `json:"chunk_x"`
	ChunkZ int32  `json:"chunk_z"`
}

// TIER_CHANGED (host -> replicas): settlement state, not raw height diffs.
type TierChangedMsg struct {
	Type         string     `json:"type"`
	SettlementID string     `json:"settlement_id"`
	NewTier      int        `json:"new_tier"`
	NewOccupied  [][2]int32 `json:"new_occupied_vertices"`
}

// SETTLEMENT_FOUNDED (host -> replicas)
type SettlementFoundedMsg struct {
	Type         string     `json:"type"`
	SettlementID string     `json:"settlement_id"`
	Faction      string     `json:"faction"`
	RootX        int32      `json:"root_x"`
	RootZ        int32      `json:"root_z"`
	Tier         int        `json:"tier"`
	Occupied     [][2]int32 `json:"occupied_vertices"`
}

// SETTLEMENT_DESTROYED (host -> replicas): vertices revert to ruins markers.
type SettlementDestroyedMsg struct {
	Type         string     `json:"type"`
	SettlementID string     `json:"settlement_id"`
	Ruins        [][2]int32 `json:"ruins_vertices"`
}

// FULL_STATE (host -> replica): bulk export for late joiners. Heights and
// feature flags are RLE-encoded per chunk.
type FullStateMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	WorldParams     WorldParams       `json:"world_params"`
	Chunks          []ChunkState      `json:"chunks"`
	Settlements     []SettlementState `json:"settlements,omitempty"`
	Ruins           []RuinsState      `json:"ruins,omitempty"`
}

type ChunkState struct {
	CX       int    `json:"cx"`
	CZ       int    `json:"cz"`
	Heights  string `json:"heights"`  // RLE, base64 varint pairs
	Features string `json:"features"` // RLE, base64 varint pairs
}

type SettlementState struct {
	SettlementID string     `json:"settlement_id"`
	Faction      string     `json:"faction"`
	RootX        int32      `json:"root_x"`
	RootZ        int32      `json:"root_z"`
	Tier         int        `json:"tier"`
	Health       int32      `json:"health"`
	Occupants    int        `json:"occupants"`
	UnderAttack  bool       `json:"under_attack"`
	Occupied     [][2]int32 `json:"occupied_vertices"`
}

type RuinsState struct {
	SettlementID string     `json:"settlement_id"`
	Vertices     [][2]int32 `json:"vertices"`
}
