package lw

// FluxModel returns the differential flux of a primary species, in 1/(GeV cm² s sr).
// Implementations must be safe for concurrent use.
type FluxModel interface {
	Evaluate(primary ParticleType, energy, zenith, azimuth float64) (float64, error)
}

// FluxFunc adapts an ordinary function to FluxModel.
type FluxFunc func(primary ParticleType, energy, zenith, azimuth float64) (float64, error)

func (f FluxFunc) Evaluate(primary ParticleType, energy, zenith, azimuth float64) (float64, error) {
	return f(primary, energy, zenith, azimuth)
}

// CrossSectionModel returns interaction cross sections in cm².
// Evaluate is the double differential dσ/dxdy at the event kinematics; TotalCrossSection
// integrates over all retained channels for the primary species.
type CrossSectionModel interface {
	Evaluate(ev Event) (float64, error)
	TotalCrossSection(primary ParticleType, energy float64) (float64, error)
}

// Generator is the sampling density implied by one injection configuration: the expected
// number of injected events per unit of phase space at the event's kinematics. Events
// outside the configuration's support have density zero.
type Generator interface {
	Density(ev Event) (float64, error)
}

// GeneratorFunc adapts an ordinary function to Generator.
type GeneratorFunc func(ev Event) (float64, error)

func (f GeneratorFunc) Density(ev Event) (float64, error) {
	return f(ev)
}

// unitFlux is the flux assumed by NewOneWeighter.
var unitFlux = FluxFunc(func(ParticleType, float64, float64, float64) (float64, error) {
	return 1, nil
})
