package lw

import "math"

// Event describes one simulated interaction. Units: energy in GeV, angles in radians,
// positions in metres, column depth in g/cm².
type Event struct {
	PrimaryType ParticleType
	FinalState0 ParticleType
	FinalState1 ParticleType

	Energy  float64
	Zenith  float64
	Azimuth float64

	// Bjorken x and inelasticity y.
	InteractionX float64
	InteractionY float64

	// Interaction vertex.
	X, Y, Z float64
	// Radius is the impact parameter of the injected track (ranged injection).
	Radius float64

	TotalColumnDepth float64
}

// CosZenith is a convenience for flux tables indexed in cos θ.
func (e Event) CosZenith() float64 {
	return math.Cos(e.Zenith)
}

// CylinderRadius is the distance of the vertex from the detector axis.
func (e Event) CylinderRadius() float64 {
	return math.Hypot(e.X, e.Y)
}

// FinalStateMatches reports whether the event's final-state pair equals (a, b) in either order.
func (e Event) FinalStateMatches(a, b ParticleType) bool {
	return (e.FinalState0 == a && e.FinalState1 == b) || (e.FinalState0 == b && e.FinalState1 == a)
}
