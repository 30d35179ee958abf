package generation

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/leptonweighter/leptonweighter/lw"
)

// Description is the top-level generation description: every injection configuration
// that contributed events to one merged sample.
// Loaded from YAML via LoadDescription(path).
type Description struct {
	Version    string          `yaml:"version"`
	Generators []GeneratorSpec `yaml:"generators"`
}

// GeneratorSpec is one injection configuration as written in the description.
type GeneratorSpec struct {
	Name       string            `yaml:"name"`
	Geometry   Geometry          `yaml:"geometry"`
	Events     uint64            `yaml:"events"`
	FinalState []lw.ParticleType `yaml:"final_state"`
	Energy     EnergySpec        `yaml:"energy"`
	Zenith     *AngleSpec        `yaml:"zenith,omitempty"`  // default [0, π]
	Azimuth    *AngleSpec        `yaml:"azimuth,omitempty"` // default [0, 2π]
	Ranged     *RangedSpec       `yaml:"ranged,omitempty"`
	Volume     *VolumeSpec       `yaml:"volume,omitempty"`
	Kinematics *KinematicsSpec   `yaml:"kinematics,omitempty"` // default uniform
}

// EnergySpec is the injected power-law spectrum, in GeV.
type EnergySpec struct {
	Min           float64 `yaml:"min"`
	Max           float64 `yaml:"max"`
	SpectralIndex float64 `yaml:"spectral_index"`
}

// AngleSpec is an angular window in radians.
type AngleSpec struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// RangedSpec holds the ranged-geometry parameters, in metres.
type RangedSpec struct {
	InjectionRadius float64 `yaml:"injection_radius"`
	EndcapLength    float64 `yaml:"endcap_length"`
}

// VolumeSpec holds the volume-geometry parameters, in metres.
type VolumeSpec struct {
	CylinderRadius float64 `yaml:"cylinder_radius"`
	CylinderHeight float64 `yaml:"cylinder_height"`
}

// KinematicsSpec names how Bjorken x and y were sampled and, for cross_section sampling,
// which cross-section model the injector used.
type KinematicsSpec struct {
	Sampling KinematicsSampling `yaml:"sampling"`
	Model    string             `yaml:"model,omitempty"`
}

var validGeometries = map[Geometry]bool{
	GeometryRanged: true, GeometryVolume: true,
}

// LoadDescription reads and parses a YAML generation description.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading generation description: %w", err)
	}
	return ParseDescription(data)
}

// ParseDescription parses a YAML generation description from memory.
func ParseDescription(data []byte) (*Description, error) {
	var desc Description
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&desc); err != nil {
		return nil, fmt.Errorf("parsing generation description: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	if desc.Version == "" {
		desc.Version = "1"
	}
	return &desc, nil
}

// Validate checks the description without building densities. Build runs the full
// numerical validation; this pass catches structural mistakes with friendlier messages.
func (d *Description) Validate() error {
	if d.Version != "1" {
		return fmt.Errorf("unsupported description version %q; valid: 1: %w", d.Version, lw.ErrInvalidConfiguration)
	}
	if len(d.Generators) == 0 {
		return fmt.Errorf("at least one generator required: %w", lw.ErrInvalidConfiguration)
	}
	seen := make(map[string]bool, len(d.Generators))
	for i := range d.Generators {
		g := &d.Generators[i]
		if err := g.validate(i); err != nil {
			return err
		}
		if g.Name != "" {
			if seen[g.Name] {
				return fmt.Errorf("generator[%d]: duplicate name %q: %w", i, g.Name, lw.ErrInvalidConfiguration)
			}
			seen[g.Name] = true
		}
	}
	return nil
}

func (g *GeneratorSpec) validate(idx int) error {
	prefix := fmt.Sprintf("generator[%d]", idx)
	if g.Name != "" {
		prefix = fmt.Sprintf("generator[%d] %q", idx, g.Name)
	}
	if !validGeometries[g.Geometry] {
		return fmt.Errorf("%s: unknown geometry %q; valid: ranged, volume: %w", prefix, g.Geometry, lw.ErrInvalidConfiguration)
	}
	if g.Events == 0 {
		return fmt.Errorf("%s: events must be positive: %w", prefix, lw.ErrInvalidConfiguration)
	}
	if len(g.FinalState) != 2 {
		return fmt.Errorf("%s: final_state must list exactly two particles, got %d: %w", prefix, len(g.FinalState), lw.ErrInvalidConfiguration)
	}
	switch g.Geometry {
	case GeometryRanged:
		if g.Ranged == nil {
			return fmt.Errorf("%s: ranged geometry requires a ranged block: %w", prefix, lw.ErrInvalidConfiguration)
		}
		if g.Volume != nil {
			return fmt.Errorf("%s: volume block given for ranged geometry: %w", prefix, lw.ErrInvalidConfiguration)
		}
	case GeometryVolume:
		if g.Volume == nil {
			return fmt.Errorf("%s: volume geometry requires a volume block: %w", prefix, lw.ErrInvalidConfiguration)
		}
		if g.Ranged != nil {
			return fmt.Errorf("%s: ranged block given for volume geometry: %w", prefix, lw.ErrInvalidConfiguration)
		}
	}
	if g.Kinematics != nil && g.Kinematics.Sampling == KinematicsUniform && g.Kinematics.Model != "" {
		logrus.Warnf("%s: kinematics.model %q ignored for uniform sampling", prefix, g.Kinematics.Model)
	}
	return nil
}

// Details converts the YAML form into constructor parameters, filling angular defaults.
func (g *GeneratorSpec) Details() Details {
	d := Details{
		Name:           g.Name,
		NumberOfEvents: g.Events,
		FinalState0:    g.FinalState[0],
		FinalState1:    g.FinalState[1],
		EnergyMin:      g.Energy.Min,
		EnergyMax:      g.Energy.Max,
		SpectralIndex:  g.Energy.SpectralIndex,
		ZenithMin:      0,
		ZenithMax:      math.Pi,
		AzimuthMin:     0,
		AzimuthMax:     2 * math.Pi,
		Kinematics:     KinematicsUniform,
	}
	if g.Zenith != nil {
		d.ZenithMin, d.ZenithMax = g.Zenith.Min, g.Zenith.Max
	}
	if g.Azimuth != nil {
		d.AzimuthMin, d.AzimuthMax = g.Azimuth.Min, g.Azimuth.Max
	}
	if g.Kinematics != nil && g.Kinematics.Sampling != "" {
		d.Kinematics = g.Kinematics.Sampling
	}
	return d
}

// Build validates the description and constructs one lw.Generator per entry, in order.
// models resolves kinematics.model names for cross_section sampling; it may be nil when
// every entry samples uniformly.
func (d *Description) Build(models map[string]KinematicsModel) ([]lw.Generator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	gens := make([]lw.Generator, 0, len(d.Generators))
	for i := range d.Generators {
		spec := &d.Generators[i]
		details := spec.Details()
		var opts []Option
		if details.Kinematics == KinematicsCrossSection {
			name := spec.Kinematics.Model
			m, ok := models[name]
			if !ok {
				return nil, fmt.Errorf("generator[%d]: unknown kinematics model %q: %w", i, name, lw.ErrInvalidConfiguration)
			}
			opts = append(opts, WithKinematicsModel(m))
		}
		var (
			gen lw.Generator
			err error
		)
		switch spec.Geometry {
		case GeometryRanged:
			gen, err = NewRangeGenerator(RangeDetails{
				Details:         details,
				InjectionRadius: spec.Ranged.InjectionRadius,
				EndcapLength:    spec.Ranged.EndcapLength,
			}, opts...)
		case GeometryVolume:
			gen, err = NewVolumeGenerator(VolumeDetails{
				Details:        details,
				CylinderRadius: spec.Volume.CylinderRadius,
				CylinderHeight: spec.Volume.CylinderHeight,
			}, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("generator[%d]: %w", i, err)
		}
		logrus.Debugf("generator[%d] %q: %s %s+%s, %d events, E∈[%g, %g] index %g",
			i, spec.Name, spec.Geometry, details.FinalState0, details.FinalState1,
			details.NumberOfEvents, details.EnergyMin, details.EnergyMax, details.SpectralIndex)
		gens = append(gens, gen)
	}
	return gens, nil
}

// LoadFile loads, validates and builds the generators of a description file.
func LoadFile(path string, models map[string]KinematicsModel) ([]lw.Generator, error) {
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	return desc.Build(models)
}
