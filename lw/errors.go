package lw

import "errors"

// Error kinds returned by the weighting core. Callers match them with errors.Is.
var (
	// ErrUnsupportedParticleType: the event's particle combination has no defined channel.
	ErrUnsupportedParticleType = errors.New("unsupported particle type")
	// ErrInvalidConfiguration: a component was constructed from malformed parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrOutOfDomain: a model was queried outside the region where it is defined.
	ErrOutOfDomain = errors.New("out of domain")
	// ErrZeroSupport: no owned generator could have produced the event.
	ErrZeroSupport = errors.New("zero generation support")
	// ErrNonFiniteWeight: the combined weight is NaN, infinite or negative.
	ErrNonFiniteWeight = errors.New("non-finite weight")
)

// ErrorKind returns a short stable label for err, used for logging and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrZeroSupport):
		return "zero_support"
	case errors.Is(err, ErrNonFiniteWeight):
		return "non_finite"
	case errors.Is(err, ErrOutOfDomain):
		return "out_of_domain"
	case errors.Is(err, ErrUnsupportedParticleType):
		return "unsupported_particle"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	default:
		return "other"
	}
}
