// Package generation implements lw.Generator for LeptonInjector-style injection
// configurations and loads them from a YAML description.
//
// A configuration's density is the product of independent factors:
//
//	N · p(E) · p(θ, φ) · p(position) · p(x, y)
//
// where p(x, y) is 1 for uniform kinematics and (dσ/dxdy / σ)/(N_A·X) when the injector
// drew the interaction kinematics from a cross section.
package generation

import (
	"fmt"
	"math"

	"github.com/leptonweighter/leptonweighter/lw"
)

// Avogadro is the number of nucleons per gram used to turn column depth into targets.
const Avogadro = 6.02214076e23

// squareMetresToCm2 converts injection areas given in m² to cm², the cross-section unit.
const squareMetresToCm2 = 1e4

// Geometry selects how the interaction position was sampled.
type Geometry string

const (
	// GeometryRanged injects tracks through a disk of InjectionRadius perpendicular to the
	// direction and places the vertex along them by column depth.
	GeometryRanged Geometry = "ranged"
	// GeometryVolume places vertices uniformly in a cylinder centred on the detector.
	GeometryVolume Geometry = "volume"
)

// KinematicsSampling selects how Bjorken x and y were drawn.
type KinematicsSampling string

const (
	KinematicsUniform      KinematicsSampling = "uniform"
	KinematicsCrossSection KinematicsSampling = "cross_section"
)

// KinematicsModel is the cross section the injector sampled x and y from. xsec.Tabulated
// satisfies it.
type KinematicsModel interface {
	Evaluate(ev lw.Event) (float64, error)
	ChannelTotalCrossSection(ev lw.Event) (float64, error)
}

// Details are the simulation parameters shared by both geometries.
type Details struct {
	Name           string
	NumberOfEvents uint64
	FinalState0    lw.ParticleType
	FinalState1    lw.ParticleType
	EnergyMin      float64
	EnergyMax      float64
	// SpectralIndex is the exponent of the injected spectrum, dN/dE ∝ E^SpectralIndex.
	SpectralIndex float64
	ZenithMin     float64
	ZenithMax     float64
	AzimuthMin    float64
	AzimuthMax    float64
	Kinematics    KinematicsSampling
}

// RangeDetails parameterizes ranged injection. Lengths in metres.
type RangeDetails struct {
	Details
	InjectionRadius float64
	EndcapLength    float64
}

// VolumeDetails parameterizes volume injection. Lengths in metres.
type VolumeDetails struct {
	Details
	CylinderRadius float64
	CylinderHeight float64
}

// Option configures a generator at construction.
type Option func(*base)

// WithKinematicsModel supplies the cross section used at generation time. Required when
// Details.Kinematics is KinematicsCrossSection.
func WithKinematicsModel(m KinematicsModel) Option {
	return func(b *base) {
		b.kinematics = m
	}
}

// base holds the factors common to both geometries.
type base struct {
	details    Details
	primary    lw.ParticleType
	energy     powerLawDensity
	direction  solidAngleDensity
	kinematics KinematicsModel
}

func newBase(d Details, opts []Option) (base, error) {
	b := base{details: d}
	for _, opt := range opts {
		opt(&b)
	}
	if d.NumberOfEvents == 0 {
		return base{}, fmt.Errorf("events must be positive: %w", lw.ErrInvalidConfiguration)
	}
	primary, err := lw.DeduceInitialType(d.FinalState0, d.FinalState1)
	if err != nil {
		return base{}, fmt.Errorf("final_state: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	b.primary = primary
	if b.energy, err = newPowerLawDensity(d.EnergyMin, d.EnergyMax, d.SpectralIndex); err != nil {
		return base{}, err
	}
	if b.direction, err = newSolidAngleDensity(d.ZenithMin, d.ZenithMax, d.AzimuthMin, d.AzimuthMax); err != nil {
		return base{}, err
	}
	switch d.Kinematics {
	case KinematicsUniform, "":
		b.details.Kinematics = KinematicsUniform
	case KinematicsCrossSection:
		if b.kinematics == nil {
			return base{}, fmt.Errorf("kinematics sampling %q requires a cross section model: %w", d.Kinematics, lw.ErrInvalidConfiguration)
		}
	default:
		return base{}, fmt.Errorf("unknown kinematics sampling %q; valid: uniform, cross_section: %w", d.Kinematics, lw.ErrInvalidConfiguration)
	}
	return b, nil
}

// Primary returns the neutrino species this configuration injects.
func (b *base) Primary() lw.ParticleType {
	return b.primary
}

// supports checks species and the energy/direction window; it returns the partial
// density N · p(E) · p(θ, φ) or 0.
func (b *base) supports(ev lw.Event) float64 {
	if ev.PrimaryType != b.primary || !ev.FinalStateMatches(b.details.FinalState0, b.details.FinalState1) {
		return 0
	}
	p := b.energy.density(ev.Energy)
	if p == 0 {
		return 0
	}
	p *= b.direction.density(ev.Zenith, ev.Azimuth)
	if p == 0 {
		return 0
	}
	return p * float64(b.details.NumberOfEvents)
}

// kinematicsFactor is the density of the sampled (x, y) and interaction target count.
func (b *base) kinematicsFactor(ev lw.Event) (float64, error) {
	if b.details.Kinematics != KinematicsCrossSection {
		return 1, nil
	}
	if ev.TotalColumnDepth <= 0 {
		return 0, fmt.Errorf("generator %q: column depth %g must be positive: %w", b.details.Name, ev.TotalColumnDepth, lw.ErrOutOfDomain)
	}
	diff, err := b.kinematics.Evaluate(ev)
	if err != nil {
		return 0, fmt.Errorf("generator %q: %w", b.details.Name, err)
	}
	if diff == 0 {
		return 0, nil
	}
	total, err := b.kinematics.ChannelTotalCrossSection(ev)
	if err != nil {
		return 0, fmt.Errorf("generator %q: %w", b.details.Name, err)
	}
	if total <= 0 {
		return 0, nil
	}
	return diff / total / (Avogadro * ev.TotalColumnDepth), nil
}

// RangeGenerator is the density of a ranged injection configuration.
type RangeGenerator struct {
	base
	radius float64
	endcap float64
	area   float64
}

// NewRangeGenerator validates d and builds its density.
func NewRangeGenerator(d RangeDetails, opts ...Option) (*RangeGenerator, error) {
	b, err := newBase(d.Details, opts)
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", d.Name, err)
	}
	if err := validateFinitePositive("ranged.injection_radius", d.InjectionRadius); err != nil {
		return nil, fmt.Errorf("generator %q: %w", d.Name, err)
	}
	if d.EndcapLength < 0 || math.IsNaN(d.EndcapLength) || math.IsInf(d.EndcapLength, 0) {
		return nil, fmt.Errorf("generator %q: ranged.endcap_length must be finite and non-negative, got %f: %w", d.Name, d.EndcapLength, lw.ErrInvalidConfiguration)
	}
	return &RangeGenerator{
		base:   b,
		radius: d.InjectionRadius,
		endcap: d.EndcapLength,
		area:   squareMetresToCm2 * math.Pi * d.InjectionRadius * d.InjectionRadius,
	}, nil
}

// Details returns the configuration this generator was built from.
func (g *RangeGenerator) Details() RangeDetails {
	return RangeDetails{Details: g.details, InjectionRadius: g.radius, EndcapLength: g.endcap}
}

// Density implements lw.Generator.
func (g *RangeGenerator) Density(ev lw.Event) (float64, error) {
	p := g.supports(ev)
	if p == 0 {
		return 0, nil
	}
	if ev.Radius > g.radius {
		return 0, nil
	}
	k, err := g.kinematicsFactor(ev)
	if err != nil {
		return 0, err
	}
	return p * k / g.area, nil
}

// VolumeGenerator is the density of a volume injection configuration.
type VolumeGenerator struct {
	base
	radius float64
	height float64
	volume float64
}

// NewVolumeGenerator validates d and builds its density.
func NewVolumeGenerator(d VolumeDetails, opts ...Option) (*VolumeGenerator, error) {
	b, err := newBase(d.Details, opts)
	if err != nil {
		return nil, fmt.Errorf("generator %q: %w", d.Name, err)
	}
	if err := validateFinitePositive("volume.cylinder_radius", d.CylinderRadius); err != nil {
		return nil, fmt.Errorf("generator %q: %w", d.Name, err)
	}
	if err := validateFinitePositive("volume.cylinder_height", d.CylinderHeight); err != nil {
		return nil, fmt.Errorf("generator %q: %w", d.Name, err)
	}
	return &VolumeGenerator{
		base:   b,
		radius: d.CylinderRadius,
		height: d.CylinderHeight,
		volume: squareMetresToCm2 * math.Pi * d.CylinderRadius * d.CylinderRadius * d.CylinderHeight,
	}, nil
}

// Details returns the configuration this generator was built from.
func (g *VolumeGenerator) Details() VolumeDetails {
	return VolumeDetails{Details: g.details, CylinderRadius: g.radius, CylinderHeight: g.height}
}

// Density implements lw.Generator. The cylinder is centred on the origin.
func (g *VolumeGenerator) Density(ev lw.Event) (float64, error) {
	p := g.supports(ev)
	if p == 0 {
		return 0, nil
	}
	if ev.CylinderRadius() > g.radius || math.Abs(ev.Z) > g.height/2 {
		return 0, nil
	}
	k, err := g.kinematicsFactor(ev)
	if err != nil {
		return 0, err
	}
	return p * k / g.volume, nil
}
