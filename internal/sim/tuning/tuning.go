package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID string `yaml:"world_id"`

	ChunkWidth int   `yaml:"chunk_width"`
	ChunkCount int   `yaml:"chunk_count"`
	StepHeight int32 `yaml:"step_height"`
	WaterLevel int32 `yaml:"water_level"`

	PlateauRegion  int `yaml:"plateau_region"`
	PlateauSteps   int `yaml:"plateau_steps"`
	ForestPermille int `yaml:"forest_permille"`
	SwampPermille  int `yaml:"swamp_permille"`
	RockPermille   int `yaml:"rock_permille"`

	TierHealth []int32 `yaml:"tier_health"`

	SnapshotEveryFlushes int `yaml:"snapshot_every_flushes"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:              "world_1",
		ChunkWidth:           16,
		ChunkCount:           8,
		StepHeight:           1,
		WaterLevel:           1,
		PlateauRegion:        8,
		PlateauSteps:         4,
		ForestPermille:       60,
		SwampPermille:        25,
		RockPermille:         15,
		TierHealth:           []int32{40, 80, 140, 220, 320, 500},
		SnapshotEveryFlushes: 200,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if len(t.TierHealth) != 6 {
		return t, fmt.Errorf("tuning.yaml: tier_health needs 6 entries, got %d", len(t.TierHealth))
	}
	return t, nil
}
