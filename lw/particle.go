package lw

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParticleType identifies a projectile or final-state species by its PDG code.
// The integer value is the code stored in serialized event records.
type ParticleType int32

const (
	Unknown  ParticleType = 0
	EMinus   ParticleType = 11
	EPlus    ParticleType = -11
	MuMinus  ParticleType = 13
	MuPlus   ParticleType = -13
	TauMinus ParticleType = 15
	TauPlus  ParticleType = -15
	NuE      ParticleType = 12
	NuEBar   ParticleType = -12
	NuMu     ParticleType = 14
	NuMuBar  ParticleType = -14
	NuTau    ParticleType = 16
	NuTauBar ParticleType = -16
	// Hadrons is the LeptonInjector code for a hadronic shower final state.
	Hadrons ParticleType = -2000001006
)

// Flavor is the lepton generation of a particle.
type Flavor int

const (
	FlavorNone Flavor = iota
	FlavorElectron
	FlavorMuon
	FlavorTau
)

func (f Flavor) String() string {
	switch f {
	case FlavorElectron:
		return "electron"
	case FlavorMuon:
		return "muon"
	case FlavorTau:
		return "tau"
	default:
		return "none"
	}
}

var particleNames = map[ParticleType]string{
	Unknown:  "Unknown",
	EMinus:   "EMinus",
	EPlus:    "EPlus",
	MuMinus:  "MuMinus",
	MuPlus:   "MuPlus",
	TauMinus: "TauMinus",
	TauPlus:  "TauPlus",
	NuE:      "NuE",
	NuEBar:   "NuEBar",
	NuMu:     "NuMu",
	NuMuBar:  "NuMuBar",
	NuTau:    "NuTau",
	NuTauBar: "NuTauBar",
	Hadrons:  "Hadrons",
}

var particlesByName = func() map[string]ParticleType {
	m := make(map[string]ParticleType, len(particleNames))
	for pt, name := range particleNames {
		m[strings.ToLower(name)] = pt
	}
	return m
}()

// String returns the canonical name, or the numeric code for values outside the enumeration.
func (p ParticleType) String() string {
	if name, ok := particleNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ParticleType(%d)", int32(p))
}

// Code returns the PDG integer code.
func (p ParticleType) Code() int {
	return int(p)
}

// Valid reports whether p is a member of the enumeration.
func (p ParticleType) Valid() bool {
	_, ok := particleNames[p]
	return ok
}

// ParticleTypeFromCode converts a serialized integer code back into a ParticleType.
func ParticleTypeFromCode(code int) (ParticleType, error) {
	pt := ParticleType(code)
	if int(pt) != code || !pt.Valid() {
		return Unknown, fmt.Errorf("particle code %d: %w", code, ErrUnsupportedParticleType)
	}
	return pt, nil
}

// ParseParticleType accepts a canonical name (case-insensitive) or a decimal PDG code.
func ParseParticleType(s string) (ParticleType, error) {
	s = strings.TrimSpace(s)
	if pt, ok := particlesByName[strings.ToLower(s)]; ok {
		return pt, nil
	}
	if code, err := strconv.Atoi(s); err == nil {
		return ParticleTypeFromCode(code)
	}
	return Unknown, fmt.Errorf("particle type %q: %w; valid: %s", s, ErrUnsupportedParticleType, strings.Join(particleNameList(), ", "))
}

func particleNameList() []string {
	names := make([]string, 0, len(particleNames))
	for _, name := range particleNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalYAML lets configuration files name particles either way ParseParticleType accepts.
func (p *ParticleType) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: particle type must be a scalar", value.Line)
	}
	pt, err := ParseParticleType(value.Value)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

// MarshalYAML writes the canonical name.
func (p ParticleType) MarshalYAML() (any, error) {
	return p.String(), nil
}

// IsNeutrino reports whether p is a left-handed neutrino.
func (p ParticleType) IsNeutrino() bool {
	return p == NuE || p == NuMu || p == NuTau
}

// IsAntineutrino reports whether p is a right-handed antineutrino.
func (p ParticleType) IsAntineutrino() bool {
	return p == NuEBar || p == NuMuBar || p == NuTauBar
}

// IsChargedLepton reports whether p is e, mu or tau of either charge.
func (p ParticleType) IsChargedLepton() bool {
	switch p {
	case EMinus, EPlus, MuMinus, MuPlus, TauMinus, TauPlus:
		return true
	}
	return false
}

// IsLepton reports whether p is any charged lepton or neutrino.
func (p ParticleType) IsLepton() bool {
	return p.IsChargedLepton() || p.IsNeutrino() || p.IsAntineutrino()
}

// IsCharged reports whether p carries electric charge. Hadrons counts as charged.
func (p ParticleType) IsCharged() bool {
	return p.IsChargedLepton() || p == Hadrons
}

// Flavor returns the lepton generation; FlavorNone for non-leptons.
func (p ParticleType) Flavor() Flavor {
	switch p {
	case EMinus, EPlus, NuE, NuEBar:
		return FlavorElectron
	case MuMinus, MuPlus, NuMu, NuMuBar:
		return FlavorMuon
	case TauMinus, TauPlus, NuTau, NuTauBar:
		return FlavorTau
	}
	return FlavorNone
}

// chargedPartner maps a neutrino to the charged lepton produced with it in a CC interaction.
var chargedPartner = map[ParticleType]ParticleType{
	NuE:      EMinus,
	NuEBar:   EPlus,
	NuMu:     MuMinus,
	NuMuBar:  MuPlus,
	NuTau:    TauMinus,
	NuTauBar: TauPlus,
}

// antiMatching pairs each charged lepton with the neutrino of opposite lepton number,
// the leptonic W decay products accepted as Glashow resonance final states.
var antiMatching = map[ParticleType]ParticleType{
	EMinus:   NuEBar,
	EPlus:    NuE,
	MuMinus:  NuMuBar,
	MuPlus:   NuMu,
	TauMinus: NuTauBar,
	TauPlus:  NuTau,
}

// Channel is the interaction channel implied by a primary and its final-state pair.
type Channel int

const (
	ChannelUnknown Channel = iota
	// ChannelCC is a charged-current deep inelastic scattering.
	ChannelCC
	// ChannelNC is a neutral-current deep inelastic scattering.
	ChannelNC
	// ChannelGR is the Glashow resonance (anti-electron neutrino on an electron).
	ChannelGR
)

func (c Channel) String() string {
	switch c {
	case ChannelCC:
		return "CC"
	case ChannelNC:
		return "NC"
	case ChannelGR:
		return "GR"
	default:
		return "unknown"
	}
}

// DeduceChannel identifies the interaction channel of primary → (f0, f1). The pair is
// order-insensitive. Combinations that no channel can produce return ErrUnsupportedParticleType.
func DeduceChannel(primary, f0, f1 ParticleType) (Channel, error) {
	if !primary.IsNeutrino() && !primary.IsAntineutrino() {
		return ChannelUnknown, fmt.Errorf("primary %s is not a neutrino: %w", primary, ErrUnsupportedParticleType)
	}
	if f0 == Hadrons && f1 != Hadrons {
		f0, f1 = f1, f0
	}
	switch {
	case f1 == Hadrons && f0 == chargedPartner[primary]:
		return ChannelCC, nil
	case f1 == Hadrons && f0 == primary:
		return ChannelNC, nil
	case primary == NuEBar && isGlashowFinalState(f0, f1):
		return ChannelGR, nil
	}
	return ChannelUnknown, fmt.Errorf("final state (%s, %s) for primary %s: %w", f0, f1, primary, ErrUnsupportedParticleType)
}

func isGlashowFinalState(f0, f1 ParticleType) bool {
	if f0 == Hadrons && f1 == Hadrons {
		return true
	}
	if f1.IsChargedLepton() {
		f0, f1 = f1, f0
	}
	switch f0 {
	case EMinus:
		return f1 == NuEBar
	case MuMinus:
		return f1 == NuMuBar
	case TauMinus:
		return f1 == NuTauBar
	}
	return false
}

// DeduceInitialType infers the primary neutrino from a final-state pair as written by
// LeptonInjector: charged lepton first for CC, neutrino first for NC, and the Glashow
// resonance states (charged lepton + matching antineutrino, or two Hadrons) give NuEBar.
func DeduceInitialType(f0, f1 ParticleType) (ParticleType, error) {
	for _, p := range []ParticleType{f0, f1} {
		if !p.IsLepton() && p != Hadrons {
			return Unknown, fmt.Errorf("final state %s: only leptons and Hadrons are supported: %w", p, ErrUnsupportedParticleType)
		}
	}
	c0, c1 := f0.IsCharged(), f1.IsCharged()
	l0, l1 := f0.IsLepton(), f1.IsLepton()
	switch {
	case !c0 && !c1:
		return Unknown, fmt.Errorf("final state (%s, %s) has no charged particle: %w", f0, f1, ErrUnsupportedParticleType)
	case c0 && !c1:
		if l0 && f1 == antiMatching[f0] {
			return NuEBar, nil
		}
		return Unknown, fmt.Errorf("final state (%s, %s): charged lepton needs the anti-matching neutrino: %w", f0, f1, ErrUnsupportedParticleType)
	case !c0 && c1:
		if l0 && f1 == Hadrons {
			return f0, nil
		}
		return Unknown, fmt.Errorf("final state (%s, %s) not recognized: %w", f0, f1, ErrUnsupportedParticleType)
	}
	// both charged
	switch {
	case l0 && l1:
		return Unknown, fmt.Errorf("final state (%s, %s): two charged leptons: %w", f0, f1, ErrUnsupportedParticleType)
	case !l0 && l1:
		return Unknown, fmt.Errorf("final state (%s, %s): charged lepton must precede Hadrons: %w", f0, f1, ErrUnsupportedParticleType)
	case l0 && !l1:
		for nu, lepton := range chargedPartner {
			if lepton == f0 {
				return nu, nil
			}
		}
	}
	// Hadrons + Hadrons
	return NuEBar, nil
}
