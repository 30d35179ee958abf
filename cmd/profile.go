package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/flux"
	"github.com/leptonweighter/leptonweighter/lw/xsec"
)

// Error policies for events that cannot be weighted.
const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

// Flux model types accepted in a profile.
const (
	FluxPowerLaw = "power_law"
	FluxConstant = "constant"
	FluxTable    = "table"
)

// DefaultXSecModelName is the kinematics.model name under which the profile's cross
// section is offered to cross_section-sampled generators.
const DefaultXSecModelName = "xsec"

// Profile is everything one `weight` run needs. Fields carry koanf tags; nested keys use
// "." in files and "__" in LW_ environment variables (LW_XSEC__NU_CC).
type Profile struct {
	Description string        `koanf:"description"`
	Events      string        `koanf:"events"`
	Output      string        `koanf:"output"`
	DB          string        `koanf:"db"`
	MetricsFile string        `koanf:"metrics_file"`
	Workers     int           `koanf:"workers"`
	OnError     string        `koanf:"on_error"`
	XSec        XSecProfile   `koanf:"xsec"`
	Fluxes      []FluxProfile `koanf:"fluxes"`
}

// XSecProfile selects the cross section: either Constant > 0 or all four surface files.
type XSecProfile struct {
	Name          string  `koanf:"name"`
	Constant      float64 `koanf:"constant"`
	ValidityFloor float64 `koanf:"validity_floor"`
	NuCC          string  `koanf:"nu_cc"`
	NuBarCC       string  `koanf:"nubar_cc"`
	NuNC          string  `koanf:"nu_nc"`
	NuBarNC       string  `koanf:"nubar_nc"`
	TotalNuCC     string  `koanf:"total_nu_cc"`
	TotalNuBarCC  string  `koanf:"total_nubar_cc"`
	TotalNuNC     string  `koanf:"total_nu_nc"`
	TotalNuBarNC  string  `koanf:"total_nubar_nc"`
}

// FluxProfile is one flux model; the weighter sums all of them.
type FluxProfile struct {
	Type          string   `koanf:"type"`
	Normalization float64  `koanf:"normalization"`
	Index         float64  `koanf:"index"`
	Scale         float64  `koanf:"scale"`
	Path          string   `koanf:"path"`
	Species       []string `koanf:"species"`
}

// NewProfile returns the defaults.
func NewProfile() *Profile {
	return &Profile{
		Workers: 0,
		OnError: OnErrorSkip,
		XSec:    XSecProfile{Name: DefaultXSecModelName},
	}
}

// flagKeys maps `weight` flags onto profile keys.
var flagKeys = map[string]string{
	"description":       "description",
	"events":            "events",
	"output":            "output",
	"db":                "db",
	"metrics-file":      "metrics_file",
	"workers":           "workers",
	"on-error":          "on_error",
	"xs-constant":       "xsec.constant",
	"xs-validity-floor": "xsec.validity_floor",
}

// LoadProfile layers, lowest precedence first:
//  1. defaults (NewProfile)
//  2. YAML file at path, or LW_CONFIG when path is empty
//  3. env (prefix LW_)
//  4. flags explicitly set on the command line
func LoadProfile(path string, flags *pflag.FlagSet) (*Profile, error) {
	base := NewProfile()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("LW_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
	}

	envProvider := env.Provider("LW_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "lw_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("profile env: %w", err)
	}

	if flags != nil {
		var setErr error
		flags.Visit(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || setErr != nil {
				return
			}
			setErr = k.Set(key, f.Value.String())
		})
		if setErr != nil {
			return nil, fmt.Errorf("profile flags: %w", setErr)
		}
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the profile names a complete run.
func (p *Profile) Validate() error {
	if p.Description == "" {
		return fmt.Errorf("profile: description path is required: %w", lw.ErrInvalidConfiguration)
	}
	if p.Events == "" {
		return fmt.Errorf("profile: events path is required: %w", lw.ErrInvalidConfiguration)
	}
	if p.OnError != OnErrorSkip && p.OnError != OnErrorAbort {
		return fmt.Errorf("profile: unknown on_error %q; valid: skip, abort: %w", p.OnError, lw.ErrInvalidConfiguration)
	}
	if p.Workers < 0 {
		return fmt.Errorf("profile: workers must be >= 0, got %d: %w", p.Workers, lw.ErrInvalidConfiguration)
	}
	x := p.XSec
	tabulated := x.NuCC != "" || x.NuBarCC != "" || x.NuNC != "" || x.NuBarNC != ""
	switch {
	case x.Constant > 0 && tabulated:
		return fmt.Errorf("profile: xsec.constant and xsec surface files are exclusive: %w", lw.ErrInvalidConfiguration)
	case x.Constant < 0:
		return fmt.Errorf("profile: xsec.constant must be positive: %w", lw.ErrInvalidConfiguration)
	case x.Constant == 0 && !tabulated:
		return fmt.Errorf("profile: set xsec.constant or the four xsec surface files: %w", lw.ErrInvalidConfiguration)
	}
	for i, f := range p.Fluxes {
		switch f.Type {
		case FluxPowerLaw, FluxConstant:
		case FluxTable:
			if f.Path == "" {
				return fmt.Errorf("profile: fluxes[%d]: table requires a path: %w", i, lw.ErrInvalidConfiguration)
			}
		default:
			return fmt.Errorf("profile: fluxes[%d]: unknown type %q; valid: power_law, constant, table: %w",
				i, f.Type, lw.ErrInvalidConfiguration)
		}
	}
	return nil
}

// CrossSection builds the configured cross-section model.
func (x XSecProfile) CrossSection() (*xsec.Tabulated, error) {
	opts := []xsec.Option{xsec.WithValidityFloor(x.ValidityFloor)}
	if x.Constant > 0 {
		return xsec.NewConstant(x.Constant, opts...)
	}
	return xsec.LoadTabulated(xsec.Paths{
		NuCC: x.NuCC, NuBarCC: x.NuBarCC, NuNC: x.NuNC, NuBarNC: x.NuBarNC,
		TotalNuCC: x.TotalNuCC, TotalNuBarCC: x.TotalNuBarCC,
		TotalNuNC: x.TotalNuNC, TotalNuBarNC: x.TotalNuBarNC,
	}, opts...)
}

// FluxModels builds every configured flux in order.
func (p *Profile) FluxModels() ([]lw.FluxModel, error) {
	models := make([]lw.FluxModel, 0, len(p.Fluxes))
	for i, f := range p.Fluxes {
		m, err := f.model()
		if err != nil {
			return nil, fmt.Errorf("fluxes[%d]: %w", i, err)
		}
		models = append(models, m)
	}
	return models, nil
}

func (f FluxProfile) model() (lw.FluxModel, error) {
	var opts []flux.Option
	if len(f.Species) > 0 {
		pts := make([]lw.ParticleType, 0, len(f.Species))
		for _, s := range f.Species {
			pt, err := lw.ParseParticleType(s)
			if err != nil {
				return nil, err
			}
			pts = append(pts, pt)
		}
		opts = append(opts, flux.WithSpecies(pts...))
	}
	switch f.Type {
	case FluxPowerLaw:
		return flux.NewPowerLaw(f.Normalization, f.Index, f.Scale, opts...)
	case FluxConstant:
		return flux.NewConstant(f.Normalization, opts...)
	case FluxTable:
		if len(f.Species) > 0 {
			return nil, fmt.Errorf("table species come from the file: %w", lw.ErrInvalidConfiguration)
		}
		var topts []flux.TableOption
		if f.Scale != 0 {
			topts = append(topts, flux.WithScale(f.Scale))
		}
		return flux.LoadTableCSV(f.Path, topts...)
	}
	return nil, fmt.Errorf("unknown flux type %q: %w", f.Type, lw.ErrInvalidConfiguration)
}
