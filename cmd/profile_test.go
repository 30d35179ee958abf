package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonweighter/leptonweighter/lw"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// weightFlags returns a flag set shaped like the weight command's, already parsed.
func weightFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("weight", pflag.ContinueOnError)
	fs.String("description", "", "")
	fs.String("events", "", "")
	fs.String("output", "", "")
	fs.String("db", "", "")
	fs.String("metrics-file", "", "")
	fs.Int("workers", 0, "")
	fs.String("on-error", OnErrorSkip, "")
	fs.Float64("xs-constant", 0, "")
	fs.Float64("xs-validity-floor", 0, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

const profileYAML = `
description: gen.yaml
events: events.csv
workers: 3
xsec:
  constant: 1e-35
fluxes:
  - type: power_law
    normalization: 1e-18
    index: -2
    scale: 100000
    species: [NuMu, NuMuBar]
  - type: constant
    normalization: 1e-20
`

func TestLoadProfile_FileValues(t *testing.T) {
	// GIVEN a profile file and no env or flags
	path := writeFile(t, t.TempDir(), "profile.yaml", profileYAML)

	// WHEN it is loaded
	p, err := LoadProfile(path, nil)
	require.NoError(t, err)

	// THEN file values override defaults and untouched defaults survive
	assert.Equal(t, "gen.yaml", p.Description)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, OnErrorSkip, p.OnError)
	assert.Equal(t, DefaultXSecModelName, p.XSec.Name)
	assert.Equal(t, 1e-35, p.XSec.Constant)
	require.Len(t, p.Fluxes, 2)
	assert.Equal(t, FluxPowerLaw, p.Fluxes[0].Type)
	assert.Equal(t, []string{"NuMu", "NuMuBar"}, p.Fluxes[0].Species)

	fluxes, err := p.FluxModels()
	require.NoError(t, err)
	require.Len(t, fluxes, 2)
	v, err := fluxes[0].Evaluate(lw.NuMu, 1e4, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1e-16, v, 1e-28)
	v, err = fluxes[0].Evaluate(lw.NuE, 1e4, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestLoadProfile_Precedence(t *testing.T) {
	// GIVEN the same key set in the file, the environment and a flag
	path := writeFile(t, t.TempDir(), "profile.yaml", profileYAML)
	t.Setenv("LW_WORKERS", "5")
	t.Setenv("LW_OUTPUT", "env.csv")
	t.Setenv("LW_XSEC__VALIDITY_FLOOR", "10")
	flags := weightFlags(t, "--workers", "7", "--on-error", "abort")

	// WHEN the profile is loaded
	p, err := LoadProfile(path, flags)
	require.NoError(t, err)

	// THEN flags beat env, env beats the file
	assert.Equal(t, 7, p.Workers)
	assert.Equal(t, OnErrorAbort, p.OnError)
	assert.Equal(t, "env.csv", p.Output)
	assert.Equal(t, 10.0, p.XSec.ValidityFloor)
	assert.Equal(t, "gen.yaml", p.Description)
}

func TestLoadProfile_UnchangedFlagsDoNotOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "profile.yaml", profileYAML)
	p, err := LoadProfile(path, weightFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, 1e-35, p.XSec.Constant)
}

func TestLoadProfile_ConfigFromEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "profile.yaml", profileYAML)
	t.Setenv("LW_CONFIG", path)
	p, err := LoadProfile("", nil)
	require.NoError(t, err)
	assert.Equal(t, "events.csv", p.Events)
}

func TestLoadProfile_FlagsOnly(t *testing.T) {
	p, err := LoadProfile("", weightFlags(t,
		"--description", "d.yaml", "--events", "e.csv", "--xs-constant", "2e-36"))
	require.NoError(t, err)
	assert.Equal(t, 2e-36, p.XSec.Constant)
	assert.Empty(t, p.Fluxes)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestProfile_Validate(t *testing.T) {
	valid := func() *Profile {
		p := NewProfile()
		p.Description, p.Events = "d.yaml", "e.csv"
		p.XSec.Constant = 1
		return p
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"no description", func(p *Profile) { p.Description = "" }},
		{"no events", func(p *Profile) { p.Events = "" }},
		{"bad on_error", func(p *Profile) { p.OnError = "retry" }},
		{"negative workers", func(p *Profile) { p.Workers = -1 }},
		{"no cross section", func(p *Profile) { p.XSec.Constant = 0 }},
		{"negative constant", func(p *Profile) { p.XSec.Constant = -1 }},
		{"constant and tables", func(p *Profile) { p.XSec.NuCC = "cc.csv" }},
		{"unknown flux", func(p *Profile) { p.Fluxes = []FluxProfile{{Type: "broken_power_law"}} }},
		{"table without path", func(p *Profile) { p.Fluxes = []FluxProfile{{Type: FluxTable}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			assert.ErrorIs(t, p.Validate(), lw.ErrInvalidConfiguration)
		})
	}
}

func TestFluxModels_Errors(t *testing.T) {
	p := &Profile{Fluxes: []FluxProfile{{Type: FluxPowerLaw, Normalization: 1, Index: -2, Species: []string{"Photon"}}}}
	_, err := p.FluxModels()
	assert.ErrorIs(t, err, lw.ErrUnsupportedParticleType)
	assert.Contains(t, err.Error(), "fluxes[0]")

	p = &Profile{Fluxes: []FluxProfile{{Type: FluxTable, Path: "flux.csv", Species: []string{"NuMu"}}}}
	_, err = p.FluxModels()
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
}
