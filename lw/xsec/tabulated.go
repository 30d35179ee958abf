// Package xsec provides the channel-dispatching cross-section model over tabulated
// double-differential surfaces.
//
// Four channels are retained: neutrino and antineutrino, each charged-current and
// neutral-current. Flavors share a channel's surface.
package xsec

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/leptonweighter/leptonweighter/lw"
)

// Channels holds one surface per retained channel.
type Channels struct {
	NuCC    Surface
	NuBarCC Surface
	NuNC    Surface
	NuBarNC Surface
}

// Totals optionally replaces integration of the surfaces with tabulated channel totals.
// Nil entries fall back to Surface.Integrate.
type Totals struct {
	NuCC    *TotalCurve
	NuBarCC *TotalCurve
	NuNC    *TotalCurve
	NuBarNC *TotalCurve
}

// Option configures a Tabulated model.
type Option func(*Tabulated)

// WithTotals supplies tabulated channel totals.
func WithTotals(t Totals) Option {
	return func(m *Tabulated) {
		m.totals = [numSlots]*TotalCurve{t.NuCC, t.NuBarCC, t.NuNC, t.NuBarNC}
	}
}

// WithValidityFloor sets the energy in GeV below which the model is undefined. Queries
// under it fail with lw.ErrOutOfDomain instead of returning 0.
func WithValidityFloor(energy float64) Option {
	return func(m *Tabulated) {
		m.floor = energy
	}
}

type slot int

const (
	slotNuCC slot = iota
	slotNuBarCC
	slotNuNC
	slotNuBarNC
	numSlots
)

var slotNames = [numSlots]string{"nu CC", "nubar CC", "nu NC", "nubar NC"}

// Tabulated implements lw.CrossSectionModel. It is immutable and safe for concurrent use.
type Tabulated struct {
	surfaces [numSlots]Surface
	totals   [numSlots]*TotalCurve
	floor    float64
}

// NewTabulated requires all four surfaces.
func NewTabulated(ch Channels, opts ...Option) (*Tabulated, error) {
	m := &Tabulated{surfaces: [numSlots]Surface{ch.NuCC, ch.NuBarCC, ch.NuNC, ch.NuBarNC}}
	for s, surf := range m.surfaces {
		if surf == nil {
			return nil, fmt.Errorf("cross section: %s surface required: %w", slotNames[s], lw.ErrInvalidConfiguration)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.floor < 0 {
		return nil, fmt.Errorf("cross section: validity floor must be non-negative, got %g: %w", m.floor, lw.ErrInvalidConfiguration)
	}
	for s, total := range m.totals {
		if total == nil {
			logrus.Debugf("cross section: %s total integrated from its surface", slotNames[s])
		}
	}
	return m, nil
}

// NewConstant is a model whose four channels all return value.
func NewConstant(value float64, opts ...Option) (*Tabulated, error) {
	if !(value >= 0) {
		return nil, fmt.Errorf("cross section: constant must be non-negative, got %g: %w", value, lw.ErrInvalidConfiguration)
	}
	c := Constant(value)
	return NewTabulated(Channels{NuCC: c, NuBarCC: c, NuNC: c, NuBarNC: c}, opts...)
}

func slotFor(primary lw.ParticleType, ch lw.Channel) (slot, error) {
	anti := primary.IsAntineutrino()
	switch ch {
	case lw.ChannelCC:
		if anti {
			return slotNuBarCC, nil
		}
		return slotNuCC, nil
	case lw.ChannelNC:
		if anti {
			return slotNuBarNC, nil
		}
		return slotNuNC, nil
	}
	return 0, fmt.Errorf("cross section: %s channel not modelled: %w", ch, lw.ErrUnsupportedParticleType)
}

func (m *Tabulated) checkFloor(energy float64) error {
	if energy < m.floor {
		return fmt.Errorf("cross section: energy %g GeV below validity floor %g GeV: %w", energy, m.floor, lw.ErrOutOfDomain)
	}
	return nil
}

func (m *Tabulated) eventSlot(ev lw.Event) (slot, error) {
	ch, err := lw.DeduceChannel(ev.PrimaryType, ev.FinalState0, ev.FinalState1)
	if err != nil {
		return 0, fmt.Errorf("cross section: %w", err)
	}
	return slotFor(ev.PrimaryType, ch)
}

// Evaluate returns dσ/dxdy in cm² for the event's channel at (E, x, y).
func (m *Tabulated) Evaluate(ev lw.Event) (float64, error) {
	s, err := m.eventSlot(ev)
	if err != nil {
		return 0, err
	}
	if err := m.checkFloor(ev.Energy); err != nil {
		return 0, err
	}
	return m.surfaces[s].Evaluate(ev.Energy, ev.InteractionX, ev.InteractionY), nil
}

func (m *Tabulated) channelTotal(s slot, energy float64) (float64, error) {
	if total := m.totals[s]; total != nil {
		v, err := total.Evaluate(energy)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", slotNames[s], err)
		}
		return v, nil
	}
	return m.surfaces[s].Integrate(energy), nil
}

// ChannelTotalCrossSection returns σ(E) of the event's channel alone.
func (m *Tabulated) ChannelTotalCrossSection(ev lw.Event) (float64, error) {
	s, err := m.eventSlot(ev)
	if err != nil {
		return 0, err
	}
	if err := m.checkFloor(ev.Energy); err != nil {
		return 0, err
	}
	return m.channelTotal(s, ev.Energy)
}

// TotalCrossSection sums the CC and NC totals for primary.
func (m *Tabulated) TotalCrossSection(primary lw.ParticleType, energy float64) (float64, error) {
	var cc, nc slot
	switch {
	case primary.IsNeutrino():
		cc, nc = slotNuCC, slotNuNC
	case primary.IsAntineutrino():
		cc, nc = slotNuBarCC, slotNuBarNC
	default:
		return 0, fmt.Errorf("cross section: primary %s is not a neutrino: %w", primary, lw.ErrUnsupportedParticleType)
	}
	if err := m.checkFloor(energy); err != nil {
		return 0, err
	}
	a, err := m.channelTotal(cc, energy)
	if err != nil {
		return 0, err
	}
	b, err := m.channelTotal(nc, energy)
	if err != nil {
		return 0, err
	}
	return a + b, nil
}
