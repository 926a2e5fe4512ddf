package tuning

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Building density presets.
const (
	DensitySparse Density = 0.05
	DensityMedium Density = 0.10
	DensityDense  Density = 0.15
)

var densityPresets = map[string]Density{
	"sparse": DensitySparse,
	"medium": DensityMedium,
	"dense":  DensityDense,
}

// Density is a building density ratio. It decodes from a number or from one
// of the preset names "sparse", "medium", "dense".
type Density float64

func parseDensity(s string) (Density, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if d, ok := densityPresets[s]; ok {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown density %q", s)
	}
	return Density(f), nil
}

func (d *Density) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("density must be a scalar")
	}
	v, err := parseDensity(n.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Density) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseDensity(s)
		if err != nil {
			return err
		}
		*d = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("density: %w", err)
	}
	*d = Density(f)
	return nil
}

type ClusterMode string

const (
	ClusterClustered   ClusterMode = "clustered"
	ClusterDistributed ClusterMode = "distributed"
	ClusterRandom      ClusterMode = "random"
)

func (m ClusterMode) Valid() bool {
	switch m {
	case ClusterClustered, ClusterDistributed, ClusterRandom:
		return true
	}
	return false
}

// GenerationConfig is the read-only input bundle of one chunk generation.
type GenerationConfig struct {
	Voronoi   VoronoiConfig  `yaml:"voronoi" json:"voronoi"`
	Roads     RoadConfig     `yaml:"roads" json:"roads"`
	Borders   BorderConfig   `yaml:"borders" json:"borders"`
	Buildings BuildingConfig `yaml:"buildings" json:"buildings"`

	GrassRatio float64 `yaml:"grass_ratio" json:"grass_ratio"`
	MaxRings   int     `yaml:"max_rings" json:"max_rings"`
}

type VoronoiConfig struct {
	Forest int `yaml:"forest" json:"forest"`
	Water  int `yaml:"water" json:"water"`
	Grass  int `yaml:"grass" json:"grass"`
}

func (v VoronoiConfig) Total() int { return v.Forest + v.Water + v.Grass }

type RoadConfig struct {
	Density        float64 `yaml:"density" json:"density"`
	SeedPointRatio float64 `yaml:"seed_point_ratio" json:"seed_point_ratio"`
}

type BorderConfig struct {
	RoadsPerBorder     int  `yaml:"roads_per_border" json:"roads_per_border"`
	ConnectToNeighbors bool `yaml:"connect_to_neighbors" json:"connect_to_neighbors"`
}

type BuildingConfig struct {
	Density          Density     `yaml:"density" json:"density"`
	SizeHint         int         `yaml:"size_hint" json:"size_hint"`
	Clustering       ClusterMode `yaml:"clustering" json:"clustering"`
	MinAdjacentRoads int         `yaml:"min_adjacent_roads" json:"min_adjacent_roads"`
}

func DefaultGeneration() GenerationConfig {
	return GenerationConfig{
		Voronoi: VoronoiConfig{Forest: 4, Water: 3, Grass: 6},
		Roads:   RoadConfig{Density: 0.1, SeedPointRatio: 0.25},
		Borders: BorderConfig{RoadsPerBorder: 1, ConnectToNeighbors: true},
		Buildings: BuildingConfig{
			Density:          DensityMedium,
			SizeHint:         2,
			Clustering:       ClusterDistributed,
			MinAdjacentRoads: 1,
		},
		GrassRatio: 0.3,
		MaxRings:   50,
	}
}

func (c GenerationConfig) Validate() error {
	if c.Voronoi.Forest < 0 || c.Voronoi.Water < 0 || c.Voronoi.Grass < 0 {
		return fmt.Errorf("voronoi seed counts must be >= 0")
	}
	if c.Voronoi.Total() == 0 {
		return fmt.Errorf("voronoi needs at least one seed")
	}
	if c.Roads.Density < 0 || c.Roads.Density > 1 {
		return fmt.Errorf("roads.density must be in [0, 1]")
	}
	if c.Roads.SeedPointRatio < 0 || c.Roads.SeedPointRatio > 1 {
		return fmt.Errorf("roads.seed_point_ratio must be in [0, 1]")
	}
	if c.Borders.RoadsPerBorder < 0 {
		return fmt.Errorf("borders.roads_per_border must be >= 0")
	}
	if c.Buildings.Density < 0 || c.Buildings.Density > 1 {
		return fmt.Errorf("buildings.density must be in [0, 1]")
	}
	if c.Buildings.SizeHint < 0 {
		return fmt.Errorf("buildings.size_hint must be >= 0")
	}
	if !c.Buildings.Clustering.Valid() {
		return fmt.Errorf("buildings.clustering %q must be one of clustered, distributed, random", c.Buildings.Clustering)
	}
	if c.Buildings.MinAdjacentRoads < 0 || c.Buildings.MinAdjacentRoads > 6 {
		return fmt.Errorf("buildings.min_adjacent_roads must be in [0, 6]")
	}
	if c.GrassRatio < 0 || c.GrassRatio > 1 {
		return fmt.Errorf("grass_ratio must be in [0, 1]")
	}
	if c.MaxRings < 0 || c.MaxRings > 50 {
		return fmt.Errorf("max_rings must be in [0, 50]")
	}
	return nil
}
