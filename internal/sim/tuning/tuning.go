package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const ProtocolVersion = "1.0"

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	WorldSeed   int64 `yaml:"world_seed"`
	ChunkRadius int   `yaml:"chunk_radius"`
	Workers     int   `yaml:"workers"`

	Generation GenerationConfig `yaml:"generation"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: ProtocolVersion,
		WorldSeed:       1337,
		ChunkRadius:     8,
		Workers:         4,
		Generation:      DefaultGeneration(),
	}
}

// Load reads a tuning YAML file. The raw document is checked against the
// embedded schema first; fields it omits keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if strings.TrimSpace(t.ProtocolVersion) == "" {
		t.ProtocolVersion = ProtocolVersion
	}
	if t.Workers <= 0 {
		t.Workers = 1
	}
	if t.Generation.Buildings.Clustering == "" {
		t.Generation.Buildings.Clustering = ClusterDistributed
	}
	if t.Generation.MaxRings == 0 {
		t.Generation.MaxRings = 50
	}
}

func (t Tuning) Validate() error {
	if t.ChunkRadius < 0 || t.ChunkRadius > t.Generation.MaxRings {
		return fmt.Errorf("chunk_radius must be in [0, generation.max_rings]")
	}
	if t.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if err := t.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}

// Canonical returns the JSON form of t and its sha256 hex digest.
func (t Tuning) Canonical() ([]byte, string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(b)
	return b, hex.EncodeToString(sum[:]), nil
}
