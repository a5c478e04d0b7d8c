package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	FlushSeq uint64 `json:"flush_seq"`
}

// SnapshotV1 captures everything needed to resume a world or to seed a
// late-joining replica: the effective config plus the full field state.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed       int64 `json:"seed"`
	ChunkWidth int   `json:"chunk_width"`
	ChunkCount int   `json:"chunk_count"`
	StepHeight int32 `json:"step_height"`
	WaterLevel int32 `json:"water_level"`

	// Worldgen tuning (captured for deterministic replica construction).
	PlateauRegion  int `json:"plateau_region,omitempty"`
	PlateauSteps   int `json:"plateau_steps,omitempty"`
	ForestPermille int `json:"forest_permille,omitempty"`
	SwampPermille  int `json:"swamp_permille,omitempty"`
	RockPermille   int `json:"rock_permille,omitempty"`

	TierHealth [6]int32 `json:"tier_health"`

	Chunks      []ChunkV1      `json:"chunks"`
	Settlements []SettlementV1 `json:"settlements"`
	Ruins       []RuinsV1      `json:"ruins,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type ChunkV1 struct {
	CX       int     `json:"cx"`
	CZ       int     `json:"cz"`
	Heights  []int32 `json:"heights"`
	Features []uint8 `json:"features"`
}

type SettlementV1 struct {
	ID          string     `json:"id"`
	Faction     string     `json:"faction"`
	RootX       int32      `json:"root_x"`
	RootZ       int32      `json:"root_z"`
	Tier        int        `json:"tier"`
	Health      int32      `json:"health"`
	Occupants   int        `json:"occupants"`
	UnderAttack bool       `json:"under_attack"`
	Occupied    [][2]int32 `json:"occupied"`
}

type RuinsV1 struct {
	ID       string     `json:"id"`
	Vertices [][2]int32 `json:"vertices"`
}

type CountersV1 struct {
	NextSettlement uint64 `json:"next_settlement"`
	MutationSeq    uint64 `json:"mutation_seq"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
