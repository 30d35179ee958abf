// Package lw computes importance-sampling weights for simulated neutrino interaction
// events, turning a biased Monte Carlo sample into a physical rate estimate.
//
// # Reading Guide
//
// Start with these files:
//   - event.go, particle.go: the event record and the PDG particle enumeration
//   - models.go: the three model interfaces the weighter combines
//   - weighter.go: the combination rule weight = Σflux · σ / Σdensity
//
// # Architecture
//
// The lw package defines interfaces and the combinator; implementations live in
// sub-packages:
//   - lw/generation/: injection configurations (ranged and volume) and their YAML description
//   - lw/flux/: power-law, constant and tabulated fluxes
//   - lw/xsec/: channel-dispatching cross section over interpolation surfaces
//   - lw/eventio/: CSV event batches and result files
//   - lw/store/: SQLite persistence of weighting runs
//   - lw/metrics/: Prometheus instrumentation of batch weighting
//
// # Combining generators
//
// Every generator reports the density with which it would have produced an event.
// The weighter sums these densities: with overlapping configurations each one
// "could have produced" the event, so the sum is the density of the merged sample.
// With one generator this is the usual flux·σ/density.
//
// All models are immutable after construction, so one Weighter can be shared by any
// number of goroutines; WeightBatch does exactly that.
package lw
