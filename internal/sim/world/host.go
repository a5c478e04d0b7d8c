package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"terramorph.dev/internal/protocol"
	"terramorph.dev/internal/sim/settlement"
	"terramorph.dev/internal/sim/terrain"
)

var (
	ErrNotBuildable      = errors.New("world: vertex not buildable")
	ErrUnknownSettlement = errors.New("world: unknown settlement")
)

type Config struct {
	ID   string
	Seed int64

	ChunkWidth int
	ChunkCount int
	StepHeight int32
	WaterLevel int32

	PlateauRegion  int
	PlateauSteps   int
	ForestPermille int
	SwampPermille  int
	RockPermille   int

	TierHealth settlement.HealthTable
}

func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.ChunkWidth <= 0 {
		c.ChunkWidth = 16
	}
	if c.ChunkCount <= 0 {
		c.ChunkCount = 8
	}
	if c.StepHeight <= 0 {
		c.StepHeight = 1
	}
	if c.TierHealth == (settlement.HealthTable{}) {
		c.TierHealth = settlement.DefaultHealth()
	}
	return c
}

// FlushLogEntry is one JSONL record per flush.
type FlushLogEntry struct {
	Seq         uint64 `json:"seq"`
	Vertices    int    `json:"vertices"`
	Chunks      int    `json:"chunks"`
	TierChanges int    `json:"tier_changes"`
}

// MutationLogEntry is one JSONL record per applied mutation batch.
type MutationLogEntry struct {
	Seq     uint64 `json:"seq"`
	Targets int    `json:"targets"`
	Raise   bool   `json:"raise"`
	Changed int    `json:"changed"`
}

// Loggers implemented in internal/persistence (may be nil).
type FlushLogger interface {
	WriteFlush(FlushLogEntry) error
}

type MutationLogger interface {
	WriteMutation(MutationLogEntry) error
}

// Host is the single authoritative replica. All height mutation and all tier
// re-evaluation happen here, sequentially within one control flow, so no
// locking is needed. Passive replicas only apply the diffs the host flushes.
type Host struct {
	cfg   Config
	field *terrain.Field
	dirty *terrain.DirtyTracker

	settlements map[terrain.SettlementID]*settlement.Settlement
	ruins       map[terrain.SettlementID][]terrain.Location

	nextSettlementNum uint64
	mutationSeq       uint64
	flushSeq          uint64

	// Outbound queue drained by a transport-agnostic send step.
	outbox [][]byte

	logger      *log.Logger
	flushLog    FlushLogger
	mutationLog MutationLogger
}

func NewHost(cfg Config) *Host {
	cfg = cfg.withDefaults()
	h := &Host{
		cfg:         cfg,
		field:       terrain.NewField(cfg.ChunkWidth, cfg.ChunkCount, cfg.WaterLevel),
		dirty:       terrain.NewDirtyTracker(),
		settlements: map[terrain.SettlementID]*settlement.Settlement{},
		ruins:       map[terrain.SettlementID][]terrain.Location{},
	}
	terrain.Generate(h.field, terrain.GenConfig{
		Seed:           cfg.Seed,
		Step:           cfg.StepHeight,
		PlateauRegion:  cfg.PlateauRegion,
		PlateauSteps:   cfg.PlateauSteps,
		ForestPermille: cfg.ForestPermille,
		SwampPermille:  cfg.SwampPermille,
		RockPermille:   cfg.RockPermille,
	})
	return h
}

func (h *Host) Config() Config        { return h.cfg }
func (h *Host) Field() *terrain.Field { return h.field }
func (h *Host) FlushSeq() uint64      { return h.flushSeq }
func (h *Host) SettlementCount() int  { return len(h.settlements) }

func (h *Host) SetLogger(l *log.Logger)            { h.logger = l }
func (h *Host) SetFlushLogger(l FlushLogger)       { h.flushLog = l }
func (h *Host) SetMutationLogger(l MutationLogger) { h.mutationLog = l }

func (h *Host) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func (h *Host) Settlement(id terrain.SettlementID) (*settlement.Settlement, bool) {
	s, ok := h.settlements[id]
	return s, ok
}

func (h *Host) WorldParams() protocol.WorldParams {
	return protocol.WorldParams{
		WorldID:        h.cfg.ID,
		Seed:           h.cfg.Seed,
		ChunkWidth:     h.cfg.ChunkWidth,
		ChunkCount:     h.cfg.ChunkCount,
		StepHeight:     h.cfg.StepHeight,
		WaterLevel:     h.cfg.WaterLevel,
		PlateauRegion:  h.cfg.PlateauRegion,
		PlateauSteps:   h.cfg.PlateauSteps,
		ForestPermille: h.cfg.ForestPermille,
		SwampPermille:  h.cfg.SwampPermille,
		RockPermille:   h.cfg.RockPermille,
	}
}

func (h *Host) enqueue(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logf("outbox marshal: %v", err)
		return
	}
	h.outbox = append(h.outbox, b)
}

// DrainOutbound hands the queued wire messages to the transport, preserving
// order. The core stays free of any networking dependency.
func (h *Host) DrainOutbound() [][]byte {
	out := h.outbox
	h.outbox = nil
	return out
}

func (h *Host) nextSettlementID() terrain.SettlementID {
	h.nextSettlementNum++
	return terrain.SettlementID(fmt.Sprintf("S%d", h.nextSettlementNum))
}
